package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id            UUID PRIMARY KEY,
	backend       TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	file_ext      TEXT NOT NULL,
	file_size     BIGINT NOT NULL,
	sha256        TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_code    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	method        TEXT NOT NULL DEFAULT '',
	pages         INTEGER NOT NULL DEFAULT 0,
	text_bytes    INTEGER NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS extraction_runs_started_at_idx ON extraction_runs (started_at DESC);`

// PostgresRecorder stores runs through a pgx pool.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates the pool, pings it and ensures the table exists.
func OpenPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*PostgresRecorder, error) {
	logger.Info("connecting to run history database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse history dsn", "error", err)
		return nil, common.NewAppError(common.CodeConfigError, "invalid HISTORY_DSN", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "elsai-console"

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 3 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		logger.Error("failed to connect to history database", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	r := &PostgresRecorder{pool: pool, logger: logger}
	if err := r.HealthCheck(dctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", common.ErrDatabase, err)
	}
	if _, err := pool.Exec(dctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
	}
	logger.Info("successfully connected to run history database")
	return r, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, run Run) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO extraction_runs
	(id, backend, file_name, file_ext, file_size, sha256, status, error_code, error_message, method, pages, text_bytes, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, string(run.Backend), run.FileName, run.FileExt, run.FileSize, run.SHA256, string(run.Status),
		run.ErrorCode, run.ErrorMessage, run.Method, run.Pages, run.TextBytes, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		r.logger.Error("extraction_run insert failed", "run_id", run.ID, "error", err)
		return err
	}
	return nil
}

func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, backend, file_name, file_ext, file_size, sha256, status, error_code, error_message, method, pages, text_bytes, started_at, finished_at
FROM extraction_runs ORDER BY started_at DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var run Run
		var backend, status string
		err := row.Scan(&run.ID, &backend, &run.FileName, &run.FileExt, &run.FileSize, &run.SHA256, &status,
			&run.ErrorCode, &run.ErrorMessage, &run.Method, &run.Pages, &run.TextBytes, &run.StartedAt, &run.FinishedAt)
		run.Backend = constants.Backend(backend)
		run.Status = constants.RunStatus(status)
		return run, err
	})
}

// HealthCheck pings the pool.
func (r *PostgresRecorder) HealthCheck(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("pool not initialised")
	}
	r.logger.Debug("pinging history database")
	return r.pool.Ping(ctx)
}

// Close closes the pool.
func (r *PostgresRecorder) Close() error {
	r.logger.Info("closing run history database")
	r.pool.Close()
	return nil
}
