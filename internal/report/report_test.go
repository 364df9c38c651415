package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/psantana5/landing/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport() *loader.Report {
	return &loader.Report{
		Started:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration: 42 * time.Millisecond,
		Results: []loader.Result{
			{ID: "hero", ContainerID: "hero-container", Outcome: loader.OutcomeMounted, Duration: 3 * time.Millisecond},
			{ID: "stories", ContainerID: "stories-container", Outcome: loader.OutcomeFallback, Error: "fetch modules/stories.html failed: status 404"},
			{ID: "gallery", ContainerID: "gallery-container", Outcome: loader.OutcomeMissing},
		},
		Initialized: true,
	}
}

func TestSummary(t *testing.T) {
	assert.Equal(t,
		"LOAD DEGRADED | mounted=1 fallback=1 missing=1 | settled_in=42ms",
		Summary(sampleReport()))

	r := sampleReport()
	r.Results = r.Results[:1]
	r.InitFailures = []string{"particles"}
	assert.Equal(t,
		"LOAD READY | mounted=1 fallback=0 missing=0 | settled_in=42ms | init_failures=particles",
		Summary(r))

	r.Failed = true
	assert.True(t, strings.HasPrefix(Summary(r), "LOAD FAILED"))
}

func TestWriteLoadReportTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLoadReport(&buf, FormatTable, sampleReport()))

	out := buf.String()
	for _, want := range []string{"hero-container", "fallback", "status 404", "LOAD DEGRADED"} {
		assert.Contains(t, out, want)
	}
}

func TestWriteLoadReportEncoded(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLoadReport(&buf, FormatJSON, sampleReport()))

	var decoded struct {
		Results []struct {
			ID      string `json:"id"`
			Outcome string `json:"outcome"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Results, 3)
	assert.Equal(t, "fallback", decoded.Results[1].Outcome)

	buf.Reset()
	require.NoError(t, WriteLoadReport(&buf, FormatYAML, sampleReport()))
	assert.Contains(t, buf.String(), "outcome: missing")

	assert.Error(t, WriteLoadReport(&buf, "xml", sampleReport()))
}

func TestWriteRegistryRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRegistry(&buf, FormatYAML, fragments.Default()))

	reg, err := fragments.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, fragments.Default().All(), reg.All())

	buf.Reset()
	require.NoError(t, WriteRegistry(&buf, FormatTable, fragments.Default()))
	assert.Contains(t, buf.String(), `<section class="landing-section">`)
}

func TestWriteSubmissions(t *testing.T) {
	subs := []*models.Submission{{
		ID:        "a1",
		Kind:      models.KindContact,
		Name:      "Ana",
		Email:     "ana@example.com",
		Subject:   strings.Repeat("x", 60),
		CreatedAt: time.Now(),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteSubmissions(&buf, FormatTable, subs))
	assert.Contains(t, buf.String(), "ana@example.com")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 60))

	buf.Reset()
	require.NoError(t, WriteSubmissions(&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestDegradationLog(t *testing.T) {
	log := NewDegradationLog(2)
	log.RecordReport(sampleReport())
	assert.Equal(t, 2, log.Count())

	log.Record(loader.Result{ID: "events", Outcome: loader.OutcomeFallback})
	recent := log.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "events", recent[0].Module)
	assert.Equal(t, "gallery", recent[1].Module)

	log.Record(loader.Result{ID: "hero", Outcome: loader.OutcomeMounted})
	assert.Equal(t, "events", log.Recent(1)[0].Module)
}

func TestMarkdown(t *testing.T) {
	html := `<html><head><title>x</title><script>var a = 1;</script></head><body>` +
		`<section id="hero"><h1>EFFETA - Comunidad Juvenil</h1><p>Jóvenes que <strong>transforman</strong>.</p></section>` +
		`<form id="contact-form"><input name="email"></form>` +
		`<ul><li>Retiros</li><li>Voluntariado</li></ul></body></html>`

	out, err := NewMarkdownConverter().Convert(html)
	require.NoError(t, err)

	assert.Contains(t, out, "# EFFETA - Comunidad Juvenil")
	assert.Contains(t, out, "**transforman**")
	assert.Contains(t, out, "- Retiros")
	assert.NotContains(t, out, "var a")
	assert.NotContains(t, out, "\n\n\n")
}

func TestEncodeYAMLIsValid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatYAML, map[string]int{"contact": 2}))

	var back map[string]int
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 2, back["contact"])
}
