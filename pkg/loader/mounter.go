// Package loader mounts page fragments into their containers and
// orchestrates a full page load.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psantana5/landing/pkg/fallback"
	"github.com/psantana5/landing/pkg/fetch"
	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/psantana5/landing/pkg/page"
	"github.com/psantana5/landing/pkg/tracing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrContainerNotFound is recorded on a Result whose container is absent
var ErrContainerNotFound = errors.New("container not found")

// Outcome is how a single mount ended
type Outcome string

const (
	// OutcomeMounted means fetched markup was wrapped into the container
	OutcomeMounted Outcome = "mounted"
	// OutcomeFallback means the fetch failed and fallback markup was used
	OutcomeFallback Outcome = "fallback"
	// OutcomeMissing means the container was absent and nothing changed
	OutcomeMissing Outcome = "missing"
	// OutcomeAborted means the mount task panicked
	OutcomeAborted Outcome = "aborted"
)

// Result describes one mount
type Result struct {
	ID          string        `json:"id" yaml:"id"`
	ContainerID string        `json:"container" yaml:"container"`
	Outcome     Outcome       `json:"outcome" yaml:"outcome"`
	Err         error         `json:"-" yaml:"-"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether fetched content was mounted
func (r Result) OK() bool {
	return r.Outcome == OutcomeMounted
}

// Recorder receives mount and load measurements
type Recorder interface {
	RecordMount(module, outcome string, d time.Duration)
	RecordLoad(d time.Duration, failed bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordMount(string, string, time.Duration) {}
func (nopRecorder) RecordLoad(time.Duration, bool)            {}

// Mounter fetches one fragment and places it into its container.
type Mounter struct {
	doc       *page.Document
	fetcher   fetch.Fetcher
	fallbacks *fallback.Provider
	logger    *logging.Logger
	tracer    trace.Tracer
	recorder  Recorder
}

// MounterConfig holds the collaborators of a Mounter. Only Document and
// Fetcher are required.
type MounterConfig struct {
	Document  *page.Document
	Fetcher   fetch.Fetcher
	Fallbacks *fallback.Provider
	Logger    *logging.Logger
	Tracer    trace.Tracer
	Recorder  Recorder
}

// NewMounter creates a mounter
func NewMounter(cfg MounterConfig) (*Mounter, error) {
	if cfg.Document == nil {
		return nil, fmt.Errorf("mounter requires a document")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("mounter requires a fetcher")
	}
	m := &Mounter{
		doc:       cfg.Document,
		fetcher:   cfg.Fetcher,
		fallbacks: cfg.Fallbacks,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		recorder:  cfg.Recorder,
	}
	if m.fallbacks == nil {
		m.fallbacks = fallback.Default()
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.tracer == nil {
		m.tracer = noop.NewTracerProvider().Tracer("landing")
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	return m, nil
}

// Mount loads d into its container. It never fails: fetch errors degrade
// to fallback markup and a missing container is reported on the Result.
func (m *Mounter) Mount(ctx context.Context, d fragments.Descriptor) Result {
	ctx, span := m.tracer.Start(ctx, "loader.Mount", trace.WithAttributes(
		tracing.AttrModule.String(d.ID),
		tracing.AttrContainer.String(d.ContainerID),
	))
	defer span.End()

	start := time.Now()
	res := m.mount(ctx, d)
	res.Duration = time.Since(start)
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	span.SetAttributes(tracing.AttrOutcome.String(string(res.Outcome)))
	if res.Outcome == OutcomeFallback {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "fallback")
	}
	m.recorder.RecordMount(d.ID, string(res.Outcome), res.Duration)
	return res
}

func (m *Mounter) mount(ctx context.Context, d fragments.Descriptor) Result {
	res := Result{ID: d.ID, ContainerID: d.ContainerID}
	log := m.logger.WithFields(map[string]interface{}{
		"module":    d.ID,
		"container": d.ContainerID,
	})

	if err := m.doc.ClearChildren(d.ContainerID); err != nil {
		log.Warn("Container not found")
		res.Outcome = OutcomeMissing
		res.Err = fmt.Errorf("%w: %s", ErrContainerNotFound, d.ContainerID)
		return res
	}

	content, err := m.fetcher.Fetch(ctx, d.SourcePath)
	if err == nil {
		err = m.doc.AppendWrapped(d.ContainerID, d.Kind.Tag(), d.ID, d.Kind.Class(), content)
		if err == nil {
			log.Info("Module loaded", map[string]interface{}{"path": d.SourcePath})
			res.Outcome = OutcomeMounted
			return res
		}
	}

	log.Error("Error loading module", map[string]interface{}{
		"path":  d.SourcePath,
		"error": err.Error(),
	})
	res.Err = err
	if setErr := m.doc.SetInnerHTML(d.ContainerID, m.fallbacks.Content(d.ID)); setErr != nil {
		if errors.Is(setErr, page.ErrNotFound) {
			res.Outcome = OutcomeMissing
			return res
		}
		res.Err = errors.Join(err, setErr)
	}
	res.Outcome = OutcomeFallback
	return res
}
