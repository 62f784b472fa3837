package prompts

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/prompts/pezzo"
	"github.com/joseph-ayodele/elsai-console/internal/telemetry"
)

// MissingCredentialsMessage is shown when the API key or project id is blank.
const MissingCredentialsMessage = "Please provide API Key and Project ID"

// Request is what the prompt panel submits. Blank fields take the configured defaults.
type Request struct {
	APIKey      string `json:"api_key"`
	ProjectID   string `json:"project_id"`
	ServerURL   string `json:"server_url"`
	Environment string `json:"environment"`
	Name        string `json:"name"`
}

// Prompt is a fetched prompt; Raw is the server reply, untouched.
type Prompt struct {
	Name        string          `json:"name"`
	Environment string          `json:"environment"`
	Raw         json.RawMessage `json:"prompt"`
	Source      string          `json:"source"` // remote | cache
	FetchedAt   time.Time       `json:"fetched_at"`
}

// Client is one configured connection to a prompt server.
type Client interface {
	GetPrompt(ctx context.Context, name string) (json.RawMessage, error)
}

// ClientFactory builds a Client for a resolved request.
type ClientFactory func(cfg pezzo.Config, logger *slog.Logger) (Client, error)

func pezzoFactory(cfg pezzo.Config, logger *slog.Logger) (Client, error) {
	return pezzo.NewClient(cfg, logger)
}

type Fetcher struct {
	defaults  common.PezzoConfig
	newClient ClientFactory
	cache     Cache
	ttl       time.Duration
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

type Option func(*Fetcher)

func WithClientFactory(f ClientFactory) Option { return func(x *Fetcher) { x.newClient = f } }

// WithCache enables caching for ttl (> 0).
func WithCache(c Cache, ttl time.Duration) Option {
	return func(x *Fetcher) {
		if c != nil && ttl > 0 {
			x.cache, x.ttl = c, ttl
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option { return func(x *Fetcher) { x.metrics = m } }

func NewFetcher(defaults common.PezzoConfig, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		defaults:  defaults,
		newClient: pezzoFactory,
		cache:     NoopCache{},
		logger:    logger,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Defaults returns the values the prompt form is pre-filled with, configured
// credentials included.
func (f *Fetcher) Defaults() Request {
	r := f.Resolve(Request{})
	r.APIKey = strings.TrimSpace(f.defaults.APIKey)
	r.ProjectID = strings.TrimSpace(f.defaults.ProjectID)
	return r
}

// Resolve fills blank server, environment and name from configuration and
// built-in defaults. Credentials are taken only from r: a cleared field stays
// blank.
func (f *Fetcher) Resolve(r Request) Request {
	pick := func(v, def, builtin string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		if def = strings.TrimSpace(def); def != "" {
			return def
		}
		return builtin
	}
	return Request{
		APIKey:      strings.TrimSpace(r.APIKey),
		ProjectID:   strings.TrimSpace(r.ProjectID),
		ServerURL:   pick(r.ServerURL, f.defaults.ServerURL, constants.DefaultPezzoServerURL),
		Environment: pick(r.Environment, f.defaults.Environment, string(constants.EnvironmentProduction)),
		Name:        pick(r.Name, "", constants.DefaultPromptName),
	}
}

// Fetch retrieves a prompt. A blank API key or project id is a CONFIG_MISSING
// warning and no request is made. Server failures are BACKEND_CALL_FAILED.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Prompt, error) {
	r := f.Resolve(req)
	logger := common.LoggerFromContext(ctx, f.logger).With("prompt", r.Name, "environment", r.Environment)

	if r.APIKey == "" || r.ProjectID == "" {
		logger.Warn("prompts.missing_credentials")
		f.metrics.ObservePrompt(string(constants.RunStatusWarning), "none")
		return Prompt{}, common.ConfigMissing(MissingCredentialsMessage)
	}
	envs := make([]string, 0, len(constants.Environments))
	for _, e := range constants.Environments {
		envs = append(envs, string(e))
	}
	if env, err := constants.ParseEnvironment(r.Environment); err == nil {
		r.Environment = string(env)
	}
	if err := common.NewValidator().
		Field("environment", r.Environment, common.OneOf(envs...)).
		Field("server_url", r.ServerURL, common.HTTPURL).
		Field("name", r.Name, common.MaxLength(256)).
		Err(); err != nil {
		return Prompt{}, err
	}

	key := cacheKey(r)
	if b, ok, err := f.cache.Get(ctx, key); err != nil {
		logger.Warn("prompts.cache_get_failed", "error", err)
	} else if ok {
		f.metrics.ObservePrompt(string(constants.RunStatusOK), "cache")
		logger.Debug("prompts.cache_hit")
		return Prompt{Name: r.Name, Environment: r.Environment, Raw: json.RawMessage(b), Source: "cache", FetchedAt: time.Now().UTC()}, nil
	}

	client, err := f.newClient(pezzo.Config{
		APIKey:      r.APIKey,
		ProjectID:   r.ProjectID,
		ServerURL:   r.ServerURL,
		Environment: r.Environment,
		Timeout:     f.defaults.Timeout,
	}, logger)
	if err != nil {
		f.metrics.ObservePrompt(string(constants.RunStatusFailed), "remote")
		return Prompt{}, common.BackendCallFailed("Pezzo", err)
	}
	raw, err := client.GetPrompt(ctx, r.Name)
	if err != nil {
		logger.Error("prompts.fetch_failed", "error", err)
		f.metrics.ObservePrompt(string(constants.RunStatusFailed), "remote")
		return Prompt{}, common.BackendCallFailed("Pezzo", err)
	}
	f.metrics.ObservePrompt(string(constants.RunStatusOK), "remote")

	if err := f.cache.Set(ctx, key, raw, f.ttl); err != nil {
		logger.Warn("prompts.cache_set_failed", "error", err)
	}
	return Prompt{Name: r.Name, Environment: r.Environment, Raw: raw, Source: "remote", FetchedAt: time.Now().UTC()}, nil
}
