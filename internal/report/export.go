// Package report renders load reports, registries and submissions for
// operators.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/psantana5/landing/pkg/models"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Encode writes v as JSON or YAML
func Encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteLoadReport writes r in the requested format
func WriteLoadReport(w io.Writer, format string, r *loader.Report) error {
	if format != FormatTable {
		return Encode(w, format, r)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Module", "Container", "Outcome", "Duration", "Error")
	for _, res := range r.Results {
		table.Append([]string{
			res.ID,
			res.ContainerID,
			string(res.Outcome),
			res.Duration.Round(time.Microsecond).String(),
			res.Error,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, Summary(r))
	return err
}

// WriteRegistry writes the registered modules
func WriteRegistry(w io.Writer, format string, reg *fragments.Registry) error {
	if format != FormatTable {
		return Encode(w, format, fragments.File{Modules: reg.All()})
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Path", "Container", "Kind", "Wrapper")
	for _, d := range reg.All() {
		wrapper := "<" + d.Kind.Tag() + ">"
		if class := d.Kind.Class(); class != "" {
			wrapper = fmt.Sprintf(`<%s class="%s">`, d.Kind.Tag(), class)
		}
		table.Append([]string{d.ID, d.SourcePath, d.ContainerID, string(d.Kind), wrapper})
	}
	return table.Render()
}

// WriteSubmissions writes stored form submissions
func WriteSubmissions(w io.Writer, format string, subs []*models.Submission) error {
	if format != FormatTable {
		if subs == nil {
			subs = []*models.Submission{}
		}
		return Encode(w, format, subs)
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Kind", "Name", "Email", "Subject", "Received")
	for _, s := range subs {
		table.Append([]string{
			s.ID,
			string(s.Kind),
			s.Name,
			s.Email,
			truncate(s.Subject, 40),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Summary is the one-line account of a load
func Summary(r *loader.Report) string {
	status := "READY"
	if r.Failed {
		status = "FAILED"
	} else if r.Count(loader.OutcomeMounted) < len(r.Results) {
		status = "DEGRADED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "LOAD %s | mounted=%d fallback=%d missing=%d",
		status,
		r.Count(loader.OutcomeMounted),
		r.Count(loader.OutcomeFallback),
		r.Count(loader.OutcomeMissing),
	)
	if n := r.Count(loader.OutcomeAborted); n > 0 {
		fmt.Fprintf(&b, " aborted=%d", n)
	}
	fmt.Fprintf(&b, " | settled_in=%s", r.Duration.Round(time.Millisecond))
	if len(r.InitFailures) > 0 {
		fmt.Fprintf(&b, " | init_failures=%s", strings.Join(r.InitFailures, ","))
	}
	return b.String()
}

// LogSummary logs Summary at INFO, or WARN when the page is degraded
func LogSummary(logger *logging.Logger, r *loader.Report) {
	line := Summary(r)
	if r.Failed || r.Count(loader.OutcomeMounted) < len(r.Results) {
		logger.Warn(line)
		return
	}
	logger.Info(line)
}
