package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id            TEXT PRIMARY KEY,
	backend       TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	file_ext      TEXT NOT NULL,
	file_size     INTEGER NOT NULL,
	sha256        TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_code    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	method        TEXT NOT NULL DEFAULT '',
	pages         INTEGER NOT NULL DEFAULT 0,
	text_bytes    INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS extraction_runs_started_at_idx ON extraction_runs (started_at DESC);`

// sqliteTime is fixed-width so that text order matches time order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRecorder stores runs in a local SQLite file (pure Go driver).
type SQLiteRecorder struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", common.ErrDatabase, err)
	}
	// single writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate sqlite: %v", common.ErrDatabase, err)
	}
	logger.Info("run history stored in sqlite", "path", path)
	return &SQLiteRecorder{db: db, logger: logger}, nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_runs
	(id, backend, file_name, file_ext, file_size, sha256, status, error_code, error_message, method, pages, text_bytes, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), string(run.Backend), run.FileName, run.FileExt, run.FileSize, run.SHA256, string(run.Status),
		run.ErrorCode, run.ErrorMessage, run.Method, run.Pages, run.TextBytes,
		run.StartedAt.UTC().Format(sqliteTime), run.FinishedAt.UTC().Format(sqliteTime),
	)
	if err != nil {
		r.logger.Error("extraction_run insert failed", "run_id", run.ID, "error", err)
		return err
	}
	return nil
}

func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, backend, file_name, file_ext, file_size, sha256, status, error_code, error_message, method, pages, text_bytes, started_at, finished_at
FROM extraction_runs ORDER BY started_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run                   Run
			id, backend, status   string
			startedAt, finishedAt string
		)
		if err := rows.Scan(&id, &backend, &run.FileName, &run.FileExt, &run.FileSize, &run.SHA256, &status,
			&run.ErrorCode, &run.ErrorMessage, &run.Method, &run.Pages, &run.TextBytes, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		run.Backend = constants.Backend(backend)
		run.Status = constants.RunStatus(status)
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", id, err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", id, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
