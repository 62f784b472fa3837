package server

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/export"
	"github.com/joseph-ayodele/elsai-console/internal/extract"
	"github.com/joseph-ayodele/elsai-console/internal/intake"
	"github.com/joseph-ayodele/elsai-console/internal/prompts"
	"github.com/joseph-ayodele/elsai-console/internal/repository"
	"github.com/joseph-ayodele/elsai-console/internal/telemetry"
)

//go:embed templates/*.html
var templateFS embed.FS

// Dispatcher runs one staged file through a backend.
type Dispatcher interface {
	Backends() []extract.BackendInfo
	Dispatch(ctx context.Context, b constants.Backend, file *intake.File) (extract.Result, error)
}

// PromptFetcher retrieves prompts from the prompt server.
type PromptFetcher interface {
	Defaults() prompts.Request
	Fetch(ctx context.Context, req prompts.Request) (prompts.Prompt, error)
}

// Deps are the components both the HTTP and gRPC surfaces call into.
type Deps struct {
	Dispatcher Dispatcher
	Stager     *intake.Stager
	Prompts    PromptFetcher
	Runs       repository.Recorder
	Export     *export.Service
	Metrics    *telemetry.Metrics
}

func (d Deps) withDefaults(logger *slog.Logger) Deps {
	if d.Runs == nil {
		d.Runs = repository.NoopRecorder{}
	}
	if d.Export == nil {
		d.Export = export.NewService(logger)
	}
	return d
}

// HTTPServer serves the console page and the JSON API.
type HTTPServer struct {
	deps    Deps
	limiter *rate.Limiter
	page    *template.Template
	logger  *slog.Logger
}

func NewHTTPServer(cfg common.ServerConfig, deps Deps, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst)
	}
	return &HTTPServer{
		deps:    deps.withDefaults(logger),
		limiter: limiter,
		page:    template.Must(template.New("index.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/index.html")),
		logger:  logger,
	}
}

// Handler builds the router.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.observe)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimit)
	api.HandleFunc("/backends", s.handleBackends).Methods(http.MethodGet)
	api.HandleFunc("/extract", s.handleExtractAPI).Methods(http.MethodPost)
	api.HandleFunc("/prompts", s.handlePromptAPI).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)

	ui := r.NewRoute().Subrouter()
	ui.Use(s.rateLimit)
	ui.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	ui.HandleFunc("/extract", s.handleExtractForm).Methods(http.MethodPost)
	ui.HandleFunc("/prompts", s.handlePromptForm).Methods(http.MethodPost)

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
