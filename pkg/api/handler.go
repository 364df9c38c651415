// Package api serves the assembled landing page, the form endpoints and the
// developer endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/psantana5/landing/internal/report"
	"github.com/psantana5/landing/pkg/auth"
	"github.com/psantana5/landing/pkg/forms"
	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/psantana5/landing/pkg/models"
	"github.com/psantana5/landing/pkg/ratelimit"
	"github.com/psantana5/landing/pkg/store"
	"github.com/psantana5/landing/pkg/tracing"
)

const maxFormBytes = 64 << 10

// SubmissionRecorder counts form submissions
type SubmissionRecorder interface {
	RecordSubmission(form, result string)
}

type nopSubmissionRecorder struct{}

func (nopSubmissionRecorder) RecordSubmission(string, string) {}

// Config holds the collaborators of a Handler
type Config struct {
	Orchestrator *loader.Orchestrator
	Store        store.Store
	Validator    *forms.Validator
	Degradations *report.DegradationLog
	Markdown     *report.MarkdownConverter
	Submissions  SubmissionRecorder
	Metrics      http.Handler // served on /metrics when set
	Limiter      *ratelimit.Limiter
	ClientIP     *ratelimit.ClientIP // nil keys clients by connection address
	Keys         *auth.APIKeyManager
	Logger       *logging.Logger
}

// Handler serves the landing page API
type Handler struct {
	orch         *loader.Orchestrator
	store        store.Store
	validator    *forms.Validator
	degradations *report.DegradationLog
	markdown     *report.MarkdownConverter
	submissions  SubmissionRecorder
	metrics      http.Handler
	limiter      *ratelimit.Limiter
	clientIP     *ratelimit.ClientIP
	keys         *auth.APIKeyManager
	logger       *logging.Logger
}

// NewHandler creates a handler. Orchestrator and Store are required.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("api handler requires an orchestrator")
	}
	if cfg.Store == nil {
		return nil, errors.New("api handler requires a store")
	}
	h := &Handler{
		orch:         cfg.Orchestrator,
		store:        cfg.Store,
		validator:    cfg.Validator,
		degradations: cfg.Degradations,
		markdown:     cfg.Markdown,
		submissions:  cfg.Submissions,
		metrics:      cfg.Metrics,
		limiter:      cfg.Limiter,
		clientIP:     cfg.ClientIP,
		keys:         cfg.Keys,
		logger:       cfg.Logger,
	}
	if h.validator == nil {
		h.validator = forms.NewValidator()
	}
	if h.degradations == nil {
		h.degradations = report.NewDegradationLog(0)
	}
	if h.markdown == nil {
		h.markdown = report.NewMarkdownConverter()
	}
	if h.submissions == nil {
		h.submissions = nopSubmissionRecorder{}
	}
	if h.keys == nil {
		h.keys = auth.NewAPIKeyManager()
	}
	if h.logger == nil {
		h.logger = logging.Discard()
	}
	return h, nil
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Page).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods("GET")
	}

	formRoutes := r.PathPrefix("/api").Subrouter()
	if h.limiter != nil {
		formRoutes.Use(h.limiter.Middleware(h.clientIP.KeyFunc))
	}
	formRoutes.HandleFunc("/contact", h.submit(models.KindContact)).Methods("POST")
	formRoutes.HandleFunc("/newsletter", h.submit(models.KindNewsletter)).Methods("POST")

	dev := r.PathPrefix("/dev").Subrouter()
	dev.Use(h.keys.Middleware)
	dev.HandleFunc("/modules", h.ListModules).Methods("GET")
	dev.HandleFunc("/modules/{id}/reload", h.ReloadModule).Methods("POST")
	dev.HandleFunc("/reload", h.ReloadAll).Methods("POST")
	dev.HandleFunc("/page.md", h.PageMarkdown).Methods("GET")
	dev.HandleFunc("/submissions", h.ListSubmissions).Methods("GET")
	dev.HandleFunc("/degradations", h.ListDegradations).Methods("GET")
}

// RouteName names a request by its route template, for tracing
func RouteName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// Page renders the assembled page
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.orch.Document().Render(w); err != nil {
		h.logger.Error("Failed to render page", map[string]interface{}{"error": err.Error()})
	}
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status    string         `json:"status"`
	Store     string         `json:"store"`
	Loaded    bool           `json:"loaded"`
	Degraded  []string       `json:"degraded,omitempty"`
	Outcomes  map[string]int `json:"outcomes,omitempty"`
	LastLoad  *time.Time     `json:"last_load,omitempty"`
	LoadError string         `json:"load_error,omitempty"`
}

// Health reports store reachability and the state of the latest load.
// Degraded fragments still answer 200; a broken store or a failed load
// answers 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Store: "ok"}
	code := http.StatusOK

	if err := h.store.HealthCheck(); err != nil {
		resp.Status = "unhealthy"
		resp.Store = err.Error()
		code = http.StatusServiceUnavailable
	}

	if last := h.orch.LastReport(); last != nil {
		resp.Loaded = last.Initialized
		started := last.Started
		resp.LastLoad = &started
		resp.Outcomes = make(map[string]int)
		for _, res := range last.Results {
			resp.Outcomes[string(res.Outcome)]++
			if !res.OK() {
				resp.Degraded = append(resp.Degraded, res.ID)
			}
		}
		if last.Failed {
			resp.Status = "unhealthy"
			resp.LoadError = last.Error
			code = http.StatusServiceUnavailable
		} else if len(resp.Degraded) > 0 && resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, code, resp)
}

func (h *Handler) submit(kind models.SubmissionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeSubmission(w, r)
		if err != nil {
			h.submissions.RecordSubmission(string(kind), "rejected")
			writeJSON(w, http.StatusBadRequest, models.SubmissionResponse{
				Message: forms.MsgInvalidForm,
			})
			return
		}

		sub, err := h.validator.Build(kind, req, h.clientIP.KeyFunc(r))
		if err != nil {
			h.submissions.RecordSubmission(string(kind), "rejected")
			resp := models.SubmissionResponse{Message: forms.MsgInvalidForm}
			var verr *forms.ValidationError
			if errors.As(err, &verr) {
				resp.Errors = verr.Fields
			}
			writeJSON(w, http.StatusBadRequest, resp)
			return
		}

		if err := h.store.SaveSubmission(sub); err != nil {
			h.submissions.RecordSubmission(string(kind), "error")
			tracing.SetError(r.Context(), err)
			h.logger.Error("Failed to store submission", map[string]interface{}{
				"form":  string(kind),
				"error": err.Error(),
			})
			writeJSON(w, http.StatusInternalServerError, models.SubmissionResponse{
				Message: forms.MsgSubmitFailed,
			})
			return
		}

		h.submissions.RecordSubmission(string(kind), "accepted")
		tracing.AddEvent(r.Context(), "submission stored", tracing.AttrForm.String(string(kind)))
		h.logger.Info("Form submitted", map[string]interface{}{
			"form": string(kind),
			"id":   sub.ID,
		})
		writeJSON(w, http.StatusCreated, models.SubmissionResponse{
			OK:      true,
			Message: forms.ThanksMessage(kind),
			ID:      sub.ID,
		})
	}
}

// decodeSubmission reads a JSON body or a url-encoded/multipart form
func decodeSubmission(w http.ResponseWriter, r *http.Request) (models.SubmissionRequest, error) {
	var req models.SubmissionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		req = formRequest(r)
	default:
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		req = formRequest(r)
	}
	return req, nil
}

func formRequest(r *http.Request) models.SubmissionRequest {
	return models.SubmissionRequest{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Subject: r.PostFormValue("subject"),
		Message: r.PostFormValue("message"),
	}
}

// ModulesResponse is returned by /dev/modules
type ModulesResponse struct {
	Modules []fragments.Descriptor `json:"modules"`
	Report  *loader.Report         `json:"report,omitempty"`
}

// ListModules lists the registry and the latest load report
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModulesResponse{
		Modules: h.orch.Registry().All(),
		Report:  h.orch.LastReport(),
	})
}

// ReloadModule remounts one module
func (h *Handler) ReloadModule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := h.orch.Remount(r.Context(), id)
	if err != nil {
		if errors.Is(err, loader.ErrUnknownModule) {
			http.Error(w, fmt.Sprintf("Module not found: %s", id), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to reload module: %v", err), http.StatusInternalServerError)
		return
	}
	h.degradations.Record(res)
	writeJSON(w, http.StatusOK, res)
}

// ReloadAll re-runs the whole orchestration
func (h *Handler) ReloadAll(w http.ResponseWriter, r *http.Request) {
	rep, err := h.orch.Reload(r.Context())
	if rep != nil {
		h.degradations.RecordReport(rep)
		report.LogSummary(h.logger, rep)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// PageMarkdown renders the assembled page as markdown
func (h *Handler) PageMarkdown(w http.ResponseWriter, r *http.Request) {
	out, err := h.markdown.Convert(h.orch.Document().String())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(out))
}

// ListSubmissions lists stored submissions, optionally filtered by ?kind=
// and capped by ?limit=
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	kind := models.SubmissionKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.IsValid() {
		http.Error(w, fmt.Sprintf("Unknown kind: %s", kind), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	subs, err := h.store.ListSubmissions(kind, limit)
	if err != nil {
		h.logger.Error("Failed to list submissions", map[string]interface{}{"error": err.Error()})
		http.Error(w, fmt.Sprintf("Failed to list submissions: %v", err), http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// ListDegradations lists recent degraded mounts, newest first
func (h *Handler) ListDegradations(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", 20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":  h.degradations.Count(),
		"recent": h.degradations.Recent(n),
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
