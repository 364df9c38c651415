// Package site assembles the landing page orchestrator from configuration.
package site

import (
	"fmt"
	"os"

	"github.com/psantana5/landing/internal/config"
	"github.com/psantana5/landing/pkg/fallback"
	"github.com/psantana5/landing/pkg/fetch"
	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/initializers"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/psantana5/landing/pkg/page"
	"github.com/psantana5/landing/web"
	"go.opentelemetry.io/otel/trace"
)

// Options carries the runtime collaborators that do not come from config
type Options struct {
	Logger   *logging.Logger
	Tracer   trace.Tracer
	Recorder loader.Recorder
	// Fetcher replaces the fetcher built from page.source
	Fetcher fetch.Fetcher
}

// Build wires the shell, registry, fetcher, fallbacks and initializers
// described by cfg into an orchestrator. Nothing is loaded yet.
func Build(cfg *config.Config, opts Options) (*loader.Orchestrator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	doc, err := loadShell(cfg.Page.Shell)
	if err != nil {
		return nil, err
	}

	registry := fragments.Default()
	if cfg.Page.Registry != "" {
		if registry, err = fragments.Load(cfg.Page.Registry); err != nil {
			return nil, err
		}
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher, err = fetch.New(cfg.Page.Source, web.Content, fetch.Options{Timeout: cfg.Page.FetchTimeout})
		if err != nil {
			return nil, err
		}
	}

	fallbacks := fallback.Default()
	for id, markup := range cfg.Page.Fallbacks {
		if _, ok := registry.Lookup(id); !ok {
			logger.Warn("Fallback configured for unknown module", map[string]interface{}{"module": id})
		}
		fallbacks.Register(id, markup)
	}

	mounter, err := loader.NewMounter(loader.MounterConfig{
		Document:  doc,
		Fetcher:   fetcher,
		Fallbacks: fallbacks,
		Logger:    logger.WithField("component", "loader"),
		Tracer:    opts.Tracer,
		Recorder:  opts.Recorder,
	})
	if err != nil {
		return nil, err
	}

	orch, err := loader.NewOrchestrator(loader.Config{
		Registry:    registry,
		Mounter:     mounter,
		SettleDelay: cfg.Page.SettleDelay,
		Logger:      logger.WithField("component", "orchestrator"),
	})
	if err != nil {
		return nil, err
	}
	initializers.Register(orch, initializers.DefaultParticles(), logger.WithField("component", "initializers"))
	return orch, nil
}

func loadShell(path string) (*page.Document, error) {
	if path == "" {
		return page.ParseString(web.Shell())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page shell: %w", err)
	}
	defer f.Close()
	return page.Parse(f)
}
