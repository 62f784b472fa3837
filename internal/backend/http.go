package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout applies when the caller passes no http.Client.
const DefaultTimeout = 60 * time.Second

// Request is a single provider call. Name prefixes the log events ("azure.analyze").
type Request struct {
	Name    string
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// Response carries what callers need from a provider reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// StatusError is returned for non-2xx replies; Body is truncated for display.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("non-2xx status: %d", e.Status)
	}
	return fmt.Sprintf("non-2xx status: %d: %s", e.Status, e.Body)
}

// Send performs req and returns the raw reply. It does not assume any provider;
// callers decide URL, method and headers.
func Send(ctx context.Context, client *http.Client, req Request, logger *slog.Logger) (Response, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Name == "" {
		req.Name = "backend"
	}

	reqID := uuid.New().String()
	start := time.Now()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		logger.Error(req.Name+".http.build_request_error", "req_id", reqID, "error", err)
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}

	logger.Debug(req.Name+".http.request",
		"req_id", reqID,
		"method", req.Method,
		"url", redactQuery(hr),
		"content_length", len(req.Body),
	)

	resp, err := client.Do(hr)
	if err != nil {
		logger.Error(req.Name+".http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Response{}, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn(req.Name+".http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{Status: resp.StatusCode, Header: resp.Header}, fmt.Errorf("read response: %w", err)
	}

	logger.Debug(req.Name+".http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	out := Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}
	if resp.StatusCode/100 != 2 {
		return out, &StatusError{Status: resp.StatusCode, Body: truncate(string(bytes.TrimSpace(raw)), 300)}
	}
	return out, nil
}

func redactQuery(r *http.Request) string {
	u := *r.URL
	u.RawQuery = ""
	return u.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
