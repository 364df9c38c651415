package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/psantana5/landing/internal/config"
	"github.com/psantana5/landing/internal/observe"
	"github.com/psantana5/landing/internal/report"
	"github.com/psantana5/landing/internal/site"
	"github.com/psantana5/landing/pkg/api"
	"github.com/psantana5/landing/pkg/auth"
	"github.com/psantana5/landing/pkg/forms"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/psantana5/landing/pkg/metrics"
	"github.com/psantana5/landing/pkg/ratelimit"
	"github.com/psantana5/landing/pkg/shutdown"
	"github.com/psantana5/landing/pkg/store"
	tlsutil "github.com/psantana5/landing/pkg/tls"
	"github.com/psantana5/landing/pkg/tracing"
	"github.com/spf13/cobra"
)

const (
	maintenanceInterval = 5 * time.Minute
	limiterMaxAge       = 10 * time.Minute
	maxLogSize          = 100 << 20
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Assemble the page and serve it",
	Long: `Loads every fragment into the page shell, then serves the assembled page,
the form endpoints, /health, /metrics and the developer endpoints under /dev.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

// remountRecorder keeps watcher-triggered remounts in the degradation log
type remountRecorder struct {
	orch         *loader.Orchestrator
	degradations *report.DegradationLog
}

func (r remountRecorder) Remount(ctx context.Context, id string) (loader.Result, error) {
	res, err := r.orch.Remount(ctx, id)
	if err == nil {
		r.degradations.Record(res)
	}
	return res, err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := shutdown.New(cfg.Server.ShutdownTimeout, logger)

	provider, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "landing",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	}, logger)
	if err != nil {
		return err
	}
	mgr.Register("tracer", provider.Shutdown)

	st, err := store.NewStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	mgr.Register("store", shutdown.CloseResource(st))
	logger.Info("Store ready", map[string]interface{}{"type": cfg.Database.Type})

	collector := metrics.NewCollector()
	collector.SetSubmissionCounter(st)

	orch, err := site.Build(cfg, site.Options{
		Logger:   logger,
		Tracer:   provider.Tracer(),
		Recorder: collector,
	})
	if err != nil {
		return err
	}

	degradations := report.NewDegradationLog(100)
	rep, err := orch.Load(ctx)
	degradations.RecordReport(rep)
	report.LogSummary(logger, rep)
	if err != nil {
		logger.Error("Page assembled without initializers", map[string]interface{}{"error": err.Error()})
	}

	keys := auth.NewAPIKeyManager()
	for _, k := range cfg.Auth.APIKeys {
		if err := keys.AddKey(k.Name, k.Key, k.TTL); err != nil {
			return err
		}
	}
	if !keys.Enabled() {
		logger.Warn("No API keys configured, developer endpoints are open")
	}

	limiter := ratelimit.NewLimiter(cfg.Forms.RateLimit, cfg.Forms.Burst)
	clientIP, err := ratelimit.NewClientIP(cfg.Forms.TrustedProxies)
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(api.Config{
		Orchestrator: orch,
		Store:        st,
		Validator:    forms.NewValidator(),
		Degradations: degradations,
		Markdown:     report.NewMarkdownConverter(),
		Submissions:  collector,
		Metrics:      metricsHandler(cfg, collector),
		Limiter:      limiter,
		ClientIP:     clientIP,
		Keys:         keys,
		Logger:       logger.WithField("component", "api"),
	})
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	router.Use(tracing.HTTPMiddleware(provider, api.RouteName))
	handler.RegisterRoutes(router)

	if cfg.Page.Watch {
		watcher, err := observe.NewFragmentWatcher(observe.Config{
			Root:     cfg.Page.Source,
			Registry: orch.Registry(),
			Debounce: cfg.Page.Debounce,
			Logger:   logger.WithField("component", "watcher"),
		}, remountRecorder{orch: orch, degradations: degradations})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		mgr.Register("watcher", func(context.Context) error { return watcher.Stop() })
	}

	go maintain(ctx, limiter, keys, logger, cfg.Logging.File)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	if cfg.Server.TLS.Enabled {
		if err := ensureCertificate(cfg.Server.TLS, logger); err != nil {
			return err
		}
		tlsConfig, err := tlsutil.LoadServerConfig(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsConfig
	}
	mgr.Register("http", shutdown.StopHTTPServer(srv))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", map[string]interface{}{
			"addr": cfg.Server.Addr,
			"tls":  cfg.Server.TLS.Enabled,
		})
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server failed", map[string]interface{}{"error": err.Error()})
			mgr.Shutdown()
			return err
		}
	}
	return mgr.Shutdown()
}

func metricsHandler(cfg *config.Config, collector *metrics.Collector) http.Handler {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return collector
}

// maintain drops idle rate limiters and expired keys, and rotates the log file
func maintain(ctx context.Context, limiter *ratelimit.Limiter, keys *auth.APIKeyManager, logger *logging.Logger, rotate bool) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.CleanupOldLimiters(limiterMaxAge); n > 0 {
				logger.Debug("Dropped idle rate limiters", map[string]interface{}{"count": n})
			}
			if n := keys.CleanupExpired(); n > 0 {
				logger.Info("Removed expired API keys", map[string]interface{}{"count": n})
			}
			if rotate {
				if err := logger.RotateIfNeeded(maxLogSize); err != nil {
					logger.Warn("Log rotation failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}
}

func ensureCertificate(cfg config.TLSConfig, logger *logging.Logger) error {
	if _, err := os.Stat(cfg.CertFile); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	logger.Warn("Certificate not found, generating a self-signed one", map[string]interface{}{"cert": cfg.CertFile})
	for _, p := range []string{cfg.CertFile, cfg.KeyFile} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create certificate directory: %w", err)
		}
	}
	return tlsutil.GenerateSelfSignedCert(cfg.CertFile, cfg.KeyFile, tlsutil.CertOptions{})
}
