package llamaparse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/joseph-ayodele/elsai-console/internal/backend"
)

const utf8BOM = "\ufeff"

type Config struct {
	APIKey string
}

// Loader reads CSV uploads into a table. Only CSV is supported.
type Loader struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llama parser api key is required")
	}
	return &Loader{cfg: cfg, logger: logger}, nil
}

// LoadCSV returns the header row and all data rows. Ragged rows are kept as-is.
func (l *Loader) LoadCSV(ctx context.Context, path string) (backend.Table, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return backend.Table{}, fmt.Errorf("open csv: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			l.logger.Warn("llamaparse.close_error", "path", path, "error", err)
		}
	}(f)

	r := gocsv.LazyCSVReader(f)
	if cr, ok := r.(*csv.Reader); ok {
		cr.FieldsPerRecord = -1
		// cells are shown verbatim
		cr.TrimLeadingSpace = false
	}

	var table backend.Table
	for {
		if err := ctx.Err(); err != nil {
			return backend.Table{}, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return backend.Table{}, fmt.Errorf("parse csv: %w", err)
		}
		if table.Headers == nil {
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], utf8BOM)
			}
			table.Headers = rec
			continue
		}
		table.Rows = append(table.Rows, rec)
	}
	if table.Headers == nil {
		return backend.Table{}, errors.New("csv file has no header row")
	}

	l.logger.Info("llamaparse.csv.ok",
		"columns", len(table.Headers),
		"rows", len(table.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return table, nil
}
