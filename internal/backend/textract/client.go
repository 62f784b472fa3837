package textract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// API is the subset of the Textract client used here.
type API interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string // optional
	Region          string
	BaseEndpoint    string // optional, for local stacks
}

// Client runs synchronous text detection on a staged document.
type Client struct {
	api    API
	logger *slog.Logger
}

// New builds a Textract client from static credentials.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("aws access key id and secret access key are required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	opts := textract.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		),
	}
	if cfg.BaseEndpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.BaseEndpoint)
	}
	return NewWithAPI(textract.New(opts), logger), nil
}

// NewWithAPI wraps an existing API implementation.
func NewWithAPI(api API, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, logger: logger}
}

// ExtractText returns the LINE blocks of the document in reading order.
func (c *Client) ExtractText(ctx context.Context, path string) (backend.Document, error) {
	start := time.Now()
	data, err := backend.ReadFile(path)
	if err != nil {
		return backend.Document{}, err
	}

	out, err := c.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: data},
	})
	if err != nil {
		c.logger.Error("textract.detect_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		var unsupported *types.UnsupportedDocumentException
		if errors.As(err, &unsupported) {
			// DetectDocumentText takes single-page PDFs; multi-page needs the S3-based async API
			return backend.Document{}, fmt.Errorf("textract detect document text (single-page documents only): %w", err)
		}
		return backend.Document{}, fmt.Errorf("textract detect document text: %w", err)
	}

	var lines []string
	for _, b := range out.Blocks {
		if b.BlockType == types.BlockTypeLine && b.Text != nil {
			lines = append(lines, aws.ToString(b.Text))
		}
	}
	pages := 0
	if out.DocumentMetadata != nil && out.DocumentMetadata.Pages != nil {
		pages = int(aws.ToInt32(out.DocumentMetadata.Pages))
	}

	text := backend.Normalize(strings.Join(lines, "\n"))
	c.logger.Info("textract.ok",
		"pages", pages,
		"lines", len(lines),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return backend.Document{Text: text, Pages: pages, Method: "textract-detect"}, nil
}
