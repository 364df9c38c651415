package loader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/psantana5/landing/pkg/page"
	"github.com/psantana5/landing/pkg/tracing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultSettleDelay is the pause between the last mount settling and the
// post-load initializers running.
const DefaultSettleDelay = 500 * time.Millisecond

// ErrUnknownModule is returned by Remount for an id not in the registry
var ErrUnknownModule = errors.New("unknown module")

// InitializerFunc runs once the page has been assembled
type InitializerFunc func(ctx context.Context, doc *page.Document) error

type initializer struct {
	name string
	fn   InitializerFunc
}

// Report summarizes one orchestration
type Report struct {
	Started      time.Time     `json:"started" yaml:"started"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Results      []Result      `json:"results" yaml:"results"`
	Initialized  bool          `json:"initialized" yaml:"initialized"`
	Failed       bool          `json:"failed" yaml:"failed"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
	InitFailures []string      `json:"init_failures,omitempty" yaml:"init_failures,omitempty"`
}

// Count returns how many results ended with outcome
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Result returns the result for id
func (r *Report) Result(id string) (Result, bool) {
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return Result{}, false
}

func (r *Report) clone() *Report {
	c := *r
	c.Results = append([]Result(nil), r.Results...)
	c.InitFailures = append([]string(nil), r.InitFailures...)
	return &c
}

// Config configures an Orchestrator
type Config struct {
	Registry    *fragments.Registry
	Mounter     *Mounter
	SettleDelay time.Duration
	Logger      *logging.Logger
}

// Orchestrator mounts every registered fragment concurrently and signals
// readiness to the post-load initializers.
//
// Load, Reload and Remount are serialized: a call made while another is in
// flight waits for it to finish.
type Orchestrator struct {
	registry    *fragments.Registry
	mounter     *Mounter
	settleDelay time.Duration
	logger      *logging.Logger
	sleep       func(time.Duration)

	run sync.Mutex // held for a whole Load, Reload or Remount

	mu           sync.RWMutex
	initializers []initializer
	last         *Report
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires a registry")
	}
	if cfg.Mounter == nil {
		return nil, fmt.Errorf("orchestrator requires a mounter")
	}
	if cfg.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay must not be negative: %s", cfg.SettleDelay)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		registry:    cfg.Registry,
		mounter:     cfg.Mounter,
		settleDelay: cfg.SettleDelay,
		logger:      logger,
		sleep:       time.Sleep,
	}, nil
}

// OnLoaded registers an initializer. Initializers run in registration order.
func (o *Orchestrator) OnLoaded(name string, fn InitializerFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.initializers = append(o.initializers, initializer{name: name, fn: fn})
}

// Registry gives read access to the fragment registry
func (o *Orchestrator) Registry() *fragments.Registry {
	return o.registry
}

// Document returns the page fragments are mounted into
func (o *Orchestrator) Document() *page.Document {
	return o.mounter.doc
}

// LastReport returns a copy of the latest report, or nil before the first load
func (o *Orchestrator) LastReport() *Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	return o.last.clone()
}

// Load mounts every fragment, waits for all of them to settle, pauses for
// the settle delay and runs the initializers. Failed fetches are not
// errors; the returned error is set only when a mount task itself broke,
// in which case the initializers are skipped.
func (o *Orchestrator) Load(ctx context.Context) (*Report, error) {
	o.run.Lock()
	defer o.run.Unlock()
	return o.load(ctx)
}

// Reload clears and remounts every container
func (o *Orchestrator) Reload(ctx context.Context) (*Report, error) {
	o.logger.Info("Reloading all modules")
	return o.Load(ctx)
}

// Remount reloads the single module id. Other containers are not touched
// and the initializers do not run again.
func (o *Orchestrator) Remount(ctx context.Context, id string) (Result, error) {
	d, ok := o.registry.Lookup(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}

	o.run.Lock()
	defer o.run.Unlock()

	o.logger.Info("Reloading module", map[string]interface{}{"module": id})
	res := o.mounter.Mount(ctx, d)

	o.mu.Lock()
	if o.last != nil {
		for i := range o.last.Results {
			if o.last.Results[i].ID == id {
				o.last.Results[i] = res
			}
		}
	}
	o.mu.Unlock()
	return res, nil
}

func (o *Orchestrator) load(ctx context.Context) (*Report, error) {
	descriptors := o.registry.All()

	ctx, span := o.mounter.tracer.Start(ctx, "loader.Load", trace.WithAttributes(
		tracing.AttrModules.Int(len(descriptors)),
	))
	defer span.End()

	report := &Report{Started: time.Now(), Results: make([]Result, len(descriptors))}
	failures := make([]error, len(descriptors))

	// A plain Group: one task failing must not cancel the others.
	var g errgroup.Group
	for i, d := range descriptors {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("mount %s panicked: %v", d.ID, r)
					failures[i] = err
					report.Results[i] = Result{
						ID:          d.ID,
						ContainerID: d.ContainerID,
						Outcome:     OutcomeAborted,
						Err:         err,
						Error:       err.Error(),
					}
					o.logger.Debug("Mount panic stack", map[string]interface{}{
						"module": d.ID,
						"stack":  string(debug.Stack()),
					})
				}
			}()
			report.Results[i] = o.mounter.Mount(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
	report.Duration = time.Since(report.Started)

	aggregate := errors.Join(failures...)
	o.mounter.recorder.RecordLoad(report.Duration, aggregate != nil)

	if aggregate != nil {
		report.Failed = true
		report.Error = aggregate.Error()
		span.RecordError(aggregate)
		span.SetStatus(codes.Error, "mount task failed")
		o.logger.Error("Error loading modules", map[string]interface{}{"error": aggregate.Error()})
		o.store(report)
		return report.clone(), aggregate
	}

	o.logger.Info("All modules settled", map[string]interface{}{
		"mounted":  report.Count(OutcomeMounted),
		"fallback": report.Count(OutcomeFallback),
		"missing":  report.Count(OutcomeMissing),
		"duration": report.Duration.String(),
	})

	o.sleep(o.settleDelay)
	report.InitFailures = o.runInitializers(ctx)
	report.Initialized = true

	o.store(report)
	return report.clone(), nil
}

func (o *Orchestrator) runInitializers(ctx context.Context) []string {
	o.mu.RLock()
	inits := append([]initializer(nil), o.initializers...)
	o.mu.RUnlock()

	var failed []string
	for _, in := range inits {
		if err := in.fn(ctx, o.mounter.doc); err != nil {
			o.logger.Error("Initializer failed", map[string]interface{}{
				"initializer": in.name,
				"error":       err.Error(),
			})
			failed = append(failed, in.name)
			continue
		}
		o.logger.Debug("Initializer done", map[string]interface{}{"initializer": in.name})
	}
	return failed
}

func (o *Orchestrator) store(r *Report) {
	o.mu.Lock()
	o.last = r
	o.mu.Unlock()
}
