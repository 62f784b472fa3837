package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/elsai-console/constants"
)

// Run is the metadata kept for one extraction attempt. File contents and
// extracted text are never stored.
type Run struct {
	ID           uuid.UUID           `json:"id"`
	Backend      constants.Backend   `json:"backend"`
	FileName     string              `json:"file_name"`
	FileExt      string              `json:"file_ext"`
	FileSize     int64               `json:"file_size"`
	SHA256       string              `json:"sha256"`
	Status       constants.RunStatus `json:"status"`
	ErrorCode    string              `json:"error_code,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Method       string              `json:"method,omitempty"`
	Pages        int                 `json:"pages"`
	TextBytes    int                 `json:"text_bytes"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
}

// Recorder persists runs.
type Recorder interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

type Config struct {
	DSN         string
	MaxConns    int32
	DialTimeout time.Duration
}

// Open picks a store from the DSN: "" -> no-op, postgres:// -> pgx, sqlite:// or file: -> SQLite.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := strings.TrimSpace(cfg.DSN)
	switch {
	case dsn == "":
		logger.Info("run history disabled")
		return NoopRecorder{}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, cfg, logger)
	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"), logger)
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"):
		return OpenSQLite(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unsupported HISTORY_DSN %q", dsn)
	}
}

// NoopRecorder drops everything.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, Run) error          { return nil }
func (NoopRecorder) Recent(context.Context, int) ([]Run, error) { return nil, nil }
func (NoopRecorder) Close() error                               { return nil }

const maxRecent = 500

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxRecent {
		return maxRecent
	}
	return limit
}
