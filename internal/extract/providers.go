package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/backend"
	"github.com/joseph-ayodele/elsai-console/internal/backend/azure"
	"github.com/joseph-ayodele/elsai-console/internal/backend/llamaparse"
	"github.com/joseph-ayodele/elsai-console/internal/backend/textract"
	"github.com/joseph-ayodele/elsai-console/internal/backend/visionai"
	"github.com/joseph-ayodele/elsai-console/internal/common"
)

// DocumentAdapter turns a backend text client into an Extractor.
type DocumentAdapter func(ctx context.Context, path string) (backend.Document, error)

func (f DocumentAdapter) Extract(ctx context.Context, path string) (Result, error) {
	doc, err := f(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindText, Text: doc.Text, Pages: doc.Pages, Method: doc.Method}, nil
}

// TableAdapter turns a CSV loader into an Extractor.
type TableAdapter func(ctx context.Context, path string) (backend.Table, error)

func (f TableAdapter) Extract(ctx context.Context, path string) (Result, error) {
	t, err := f(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindTable, Table: &t, Method: "csv-load"}, nil
}

// DefaultRegistry wires the five production backends.
func DefaultRegistry() Registry {
	pdfOnly := []string{constants.PDF}
	return Registry{
		constants.BackendVisionAI: {
			Backend: constants.BackendVisionAI,
			Formats: pdfOnly,
			Missing: func(c common.BackendsConfig) []string {
				return missing(setting{"VISIONAI_API_KEY", c.VisionAI.APIKey})
			},
			New: func(ctx context.Context, c common.BackendsConfig, logger *slog.Logger) (Extractor, error) {
				cl, err := visionai.New(ctx, visionai.Config{APIKey: c.VisionAI.APIKey, Endpoint: c.VisionAI.Endpoint}, logger)
				if err != nil {
					return nil, err
				}
				return DocumentAdapter(cl.ExtractText), nil
			},
		},
		constants.BackendAWSTextract: {
			Backend: constants.BackendAWSTextract,
			Formats: pdfOnly,
			Missing: func(c common.BackendsConfig) []string {
				return missing(
					setting{"AWS_ACCESS_KEY_ID", c.Textract.AccessKeyID},
					setting{"AWS_SECRET_ACCESS_KEY", c.Textract.SecretAccessKey},
				)
			},
			New: func(_ context.Context, c common.BackendsConfig, logger *slog.Logger) (Extractor, error) {
				cl, err := textract.New(textract.Config{
					AccessKeyID:     c.Textract.AccessKeyID,
					SecretAccessKey: c.Textract.SecretAccessKey,
					SessionToken:    c.Textract.SessionToken,
					Region:          c.Textract.Region,
				}, logger)
				if err != nil {
					return nil, err
				}
				return DocumentAdapter(cl.ExtractText), nil
			},
		},
		constants.BackendLlamaParser: {
			Backend: constants.BackendLlamaParser,
			Formats: []string{constants.CSV},
			Missing: func(c common.BackendsConfig) []string {
				return missing(setting{"LLAMA_PARSER_API_KEY", c.LlamaParse.APIKey})
			},
			New: func(_ context.Context, c common.BackendsConfig, logger *slog.Logger) (Extractor, error) {
				l, err := llamaparse.New(llamaparse.Config{APIKey: c.LlamaParse.APIKey}, logger)
				if err != nil {
					return nil, err
				}
				return TableAdapter(l.LoadCSV), nil
			},
		},
		constants.BackendAzureDocumentIntelligence: {
			Backend: constants.BackendAzureDocumentIntelligence,
			Formats: pdfOnly,
			Missing: func(c common.BackendsConfig) []string {
				return missing(
					setting{"VISION_ENDPOINT", c.DocumentIntelligence.Endpoint},
					setting{"VISION_KEY", c.DocumentIntelligence.Key},
				)
			},
			New: func(_ context.Context, c common.BackendsConfig, logger *slog.Logger) (Extractor, error) {
				di, err := azure.NewDocumentIntelligence(azureConfig(c.DocumentIntelligence, c), logger)
				if err != nil {
					return nil, err
				}
				return DocumentAdapter(di.ExtractText), nil
			},
		},
		constants.BackendAzureCognitive: {
			Backend: constants.BackendAzureCognitive,
			Formats: pdfOnly,
			Missing: func(c common.BackendsConfig) []string {
				return missing(
					setting{"AZURE_COGNITIVE_SERVICE_ENDPOINT", c.Cognitive.Endpoint},
					setting{"AZURE_COGNITIVE_SERVICE_SUBSCRIPTION_KEY", c.Cognitive.Key},
				)
			},
			New: func(_ context.Context, c common.BackendsConfig, logger *slog.Logger) (Extractor, error) {
				cv, err := azure.NewComputerVision(azureConfig(c.Cognitive, c), logger)
				if err != nil {
					return nil, err
				}
				return DocumentAdapter(cv.ExtractText), nil
			},
		},
	}
}

func azureConfig(a common.AzureConfig, c common.BackendsConfig) azure.Config {
	return azure.Config{
		Endpoint:     a.Endpoint,
		Key:          a.Key,
		PollInterval: c.PollInterval,
		PollTimeout:  c.PollTimeout,
	}
}
