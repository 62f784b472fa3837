package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

var errPending = errors.New("operation still running")

type Config struct {
	Endpoint     string // resource endpoint, e.g. https://<name>.cognitiveservices.azure.com
	Key          string
	PollInterval time.Duration // default 1s
	PollTimeout  time.Duration // default 2m
	HTTPClient   *http.Client
}

func (c *Config) withDefaults() {
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: backend.DefaultTimeout}
	}
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return errors.New("azure endpoint is required")
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("azure endpoint %q must be an http(s) URL", c.Endpoint)
	}
	if c.Key == "" {
		return errors.New("azure key is required")
	}
	return nil
}

// operation submits a document to an analyze endpoint and polls the returned
// Operation-Location until it succeeds or fails.
type operation struct {
	name   string
	cfg    Config
	logger *slog.Logger
}

type operationStatus struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (o operation) run(ctx context.Context, analyzeURL, contentType string, doc []byte) ([]byte, error) {
	resp, err := backend.Send(ctx, o.cfg.HTTPClient, backend.Request{
		Name:   o.name + ".analyze",
		Method: http.MethodPost,
		URL:    analyzeURL,
		Body:   doc,
		Headers: map[string]string{
			subscriptionKeyHeader: o.cfg.Key,
			"Content-Type":        contentType,
		},
	}, o.logger)
	if err != nil {
		return nil, err
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return nil, errors.New("response is missing Operation-Location header")
	}

	var result []byte
	b := retry.WithMaxDuration(o.cfg.PollTimeout, retry.NewConstant(o.cfg.PollInterval))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		pr, err := backend.Send(ctx, o.cfg.HTTPClient, backend.Request{
			Name:    o.name + ".poll",
			URL:     opURL,
			Headers: map[string]string{subscriptionKeyHeader: o.cfg.Key},
		}, o.logger)
		if err != nil {
			return err
		}
		var st operationStatus
		if err := json.Unmarshal(pr.Body, &st); err != nil {
			return fmt.Errorf("decode operation status: %w", err)
		}
		switch strings.ToLower(st.Status) {
		case "succeeded":
			result = pr.Body
			return nil
		case "failed":
			if st.Error != nil && st.Error.Message != "" {
				return fmt.Errorf("analysis failed: %s: %s", st.Error.Code, st.Error.Message)
			}
			return errors.New("analysis failed")
		default:
			return retry.RetryableError(errPending)
		}
	})
	if errors.Is(err, errPending) {
		return nil, fmt.Errorf("analysis did not complete within %s", o.cfg.PollTimeout)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
