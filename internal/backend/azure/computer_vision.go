package azure

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

var readResultSchema = backend.MustCompileSchema("azure-read.json", map[string]any{
	"type":     "object",
	"required": []any{"analyzeResult"},
	"properties": map[string]any{
		"analyzeResult": map[string]any{
			"type":     "object",
			"required": []any{"readResults"},
			"properties": map[string]any{
				"readResults": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"lines": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type":     "object",
									"required": []any{"text"},
								},
							},
						},
					},
				},
			},
		},
	},
})

// ComputerVision reads PDFs with the Computer Vision Read API (v3.2).
type ComputerVision struct {
	op operation
}

func NewComputerVision(cfg Config, logger *slog.Logger) (*ComputerVision, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ComputerVision{op: operation{name: "azure.read", cfg: cfg, logger: logger}}, nil
}

func (c *ComputerVision) ExtractText(ctx context.Context, path string) (backend.Document, error) {
	start := time.Now()
	data, err := backend.ReadFile(path)
	if err != nil {
		return backend.Document{}, err
	}
	raw, err := c.op.run(ctx, c.op.cfg.Endpoint+"/vision/v3.2/read/analyze", "application/octet-stream", data)
	if err != nil {
		return backend.Document{}, err
	}

	var out struct {
		AnalyzeResult struct {
			ReadResults []struct {
				Page  int `json:"page"`
				Lines []struct {
					Text string `json:"text"`
				} `json:"lines"`
			} `json:"readResults"`
		} `json:"analyzeResult"`
	}
	if err := backend.DecodeValidated(readResultSchema, raw, &out); err != nil {
		return backend.Document{}, err
	}

	var sb strings.Builder
	for i, page := range out.AnalyzeResult.ReadResults {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		for _, line := range page.Lines {
			sb.WriteString(line.Text)
			sb.WriteByte('\n')
		}
	}
	pages := len(out.AnalyzeResult.ReadResults)
	c.op.logger.Info("azure.read.ok",
		"pages", pages,
		"chars", sb.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return backend.Document{
		Text:   backend.Normalize(sb.String()),
		Pages:  pages,
		Method: "azure-read-v3.2",
	}, nil
}
