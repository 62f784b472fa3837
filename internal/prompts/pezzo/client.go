package pezzo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

const deploymentPath = "/api/prompts/v2/deployment"

var promptSchema = backend.MustCompileSchema("pezzo-prompt.json", map[string]any{
	"type": "object",
})

type Config struct {
	APIKey      string
	ProjectID   string
	ServerURL   string // default constants.DefaultPezzoServerURL
	Environment string // default Production
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client reads deployed prompts from a Pezzo server.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" || cfg.ProjectID == "" {
		return nil, errors.New("pezzo api key and project id are required")
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = constants.DefaultPezzoServerURL
	}
	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = string(constants.EnvironmentProduction)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc, logger: logger}, nil
}

// GetPrompt returns the deployed prompt body exactly as the server sent it.
func (c *Client) GetPrompt(ctx context.Context, name string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("environmentName", c.cfg.Environment)
	q.Set("projectId", c.cfg.ProjectID)

	resp, err := backend.Send(ctx, c.http, backend.Request{
		Name:   "pezzo",
		Method: http.MethodGet,
		URL:    c.cfg.ServerURL + deploymentPath + "?" + q.Encode(),
		Headers: map[string]string{
			"Accept":             "application/json",
			"x-pezzo-api-key":    c.cfg.APIKey,
			"x-pezzo-project-id": c.cfg.ProjectID,
		},
	}, c.logger)
	if err != nil {
		return nil, err
	}
	if err := backend.DecodeValidated(promptSchema, resp.Body, nil); err != nil {
		return nil, err
	}
	c.logger.Info("pezzo.prompt.ok", "name", name, "environment", c.cfg.Environment, "bytes", len(resp.Body))
	return json.RawMessage(resp.Body), nil
}
