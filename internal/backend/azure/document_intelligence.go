package azure

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

const documentIntelligenceAPIVersion = "2023-07-31"

var analyzeResultSchema = backend.MustCompileSchema("azure-di.json", map[string]any{
	"type":     "object",
	"required": []any{"analyzeResult"},
	"properties": map[string]any{
		"analyzeResult": map[string]any{
			"type":     "object",
			"required": []any{"content"},
			"properties": map[string]any{
				"content": map[string]any{"type": "string"},
				"pages":   map[string]any{"type": "array"},
			},
		},
	},
})

// DocumentIntelligence reads PDFs with the prebuilt-read model.
type DocumentIntelligence struct {
	op operation
}

func NewDocumentIntelligence(cfg Config, logger *slog.Logger) (*DocumentIntelligence, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &DocumentIntelligence{op: operation{name: "azure.docintel", cfg: cfg, logger: logger}}, nil
}

func (d *DocumentIntelligence) ExtractText(ctx context.Context, path string) (backend.Document, error) {
	start := time.Now()
	data, err := backend.ReadFile(path)
	if err != nil {
		return backend.Document{}, err
	}
	url := d.op.cfg.Endpoint + "/formrecognizer/documentModels/prebuilt-read:analyze?api-version=" + documentIntelligenceAPIVersion
	raw, err := d.op.run(ctx, url, "application/pdf", data)
	if err != nil {
		return backend.Document{}, err
	}

	var out struct {
		AnalyzeResult struct {
			Content string            `json:"content"`
			Pages   []json.RawMessage `json:"pages"`
		} `json:"analyzeResult"`
	}
	if err := backend.DecodeValidated(analyzeResultSchema, raw, &out); err != nil {
		return backend.Document{}, err
	}
	d.op.logger.Info("azure.docintel.ok",
		"pages", len(out.AnalyzeResult.Pages),
		"chars", len(out.AnalyzeResult.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return backend.Document{
		Text:   backend.Normalize(out.AnalyzeResult.Content),
		Pages:  len(out.AnalyzeResult.Pages),
		Method: "azure-prebuilt-read",
	}, nil
}
