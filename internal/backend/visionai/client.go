package visionai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

// maxPagesPerRequest is the files:annotate limit for inline content.
const maxPagesPerRequest = 5

type Config struct {
	APIKey   string
	Endpoint string // optional base URL override
}

// Client extracts PDF text with Cloud Vision DOCUMENT_TEXT_DETECTION.
type Client struct {
	cfg    Config
	svc    *vision.Service
	logger *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("vision api key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		ep := cfg.Endpoint
		if !strings.HasSuffix(ep, "/") {
			ep += "/"
		}
		opts = append(opts, option.WithEndpoint(ep))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Client{cfg: cfg, svc: svc, logger: logger}, nil
}

// ExtractText annotates the PDF in batches of five pages and joins the page texts.
func (c *Client) ExtractText(ctx context.Context, path string) (backend.Document, error) {
	start := time.Now()
	data, err := backend.ReadFile(path)
	if err != nil {
		return backend.Document{}, err
	}
	content := base64.StdEncoding.EncodeToString(data)

	var texts []string
	total := -1
	for first := 1; total < 0 || first <= total; first += maxPagesPerRequest {
		req := &vision.AnnotateFileRequest{
			InputConfig: &vision.InputConfig{Content: content, MimeType: "application/pdf"},
			Features:    []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}
		// the first call omits Pages so the API picks the first five and reports the total
		if total >= 0 {
			for p := first; p < first+maxPagesPerRequest && p <= total; p++ {
				req.Pages = append(req.Pages, int64(p))
			}
		}

		resp, err := c.svc.Files.Annotate(&vision.BatchAnnotateFilesRequest{
			Requests: []*vision.AnnotateFileRequest{req},
		}).Context(ctx).Do()
		if err != nil {
			c.logger.Error("visionai.annotate_error", "first_page", first, "error", err)
			return backend.Document{}, err
		}
		if len(resp.Responses) == 0 {
			return backend.Document{}, errors.New("vision returned no file responses")
		}
		fr := resp.Responses[0]
		if fr.Error != nil && fr.Error.Message != "" {
			return backend.Document{}, fmt.Errorf("vision: %s", fr.Error.Message)
		}
		for i, ir := range fr.Responses {
			if ir.Error != nil && ir.Error.Message != "" {
				return backend.Document{}, fmt.Errorf("vision page %d: %s", first+i, ir.Error.Message)
			}
			if ir.FullTextAnnotation != nil {
				texts = append(texts, ir.FullTextAnnotation.Text)
			}
		}

		total = int(fr.TotalPages)
		if total == 0 {
			break
		}
	}

	text := backend.Normalize(strings.Join(texts, "\n\n"))
	c.logger.Info("visionai.ok",
		"pages", total,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return backend.Document{Text: text, Pages: total, Method: "vision-document-text"}, nil
}
