package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/elsai-console/internal/extract"
	"github.com/joseph-ayodele/elsai-console/internal/repository"
)

// ContentType is the MIME type of the workbooks produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	resultSheet = "Extraction"
	runsSheet   = "Runs"
	maxCellLen  = 32767 // excelize rejects longer cell values
)

// Service turns extraction output and run history into XLSX bytes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultXLSX writes a table result as header + rows, and a text result as one
// line per row under a "Text" header.
func (s *Service) ResultXLSX(res extract.Result) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := useSheet(f, resultSheet); err != nil {
		return nil, err
	}

	var headers []string
	var rows [][]string
	if res.Kind == extract.KindTable && res.Table != nil {
		headers = res.Table.Headers
		rows = res.Table.Rows
	} else {
		headers = []string{"Text"}
		for _, line := range strings.Split(res.Text, "\n") {
			rows = append(rows, []string{line})
		}
	}

	if err := writeRow(f, resultSheet, 1, headers); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if err := writeRow(f, resultSheet, i+2, r); err != nil {
			return nil, err
		}
	}
	if len(headers) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		width := 24.0
		if res.Kind != extract.KindTable {
			width = 100
		}
		_ = f.SetColWidth(resultSheet, "A", last, width)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"backend", string(res.Backend),
		"kind", res.Kind,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// RunsXLSX writes run history, newest first as given.
func (s *Service) RunsXLSX(runs []repository.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := useSheet(f, runsSheet); err != nil {
		return nil, err
	}
	headers := []string{"Started", "Backend", "File", "Size", "Status", "Error Code", "Message", "Method", "Pages", "Duration (ms)"}
	if err := writeRow(f, runsSheet, 1, headers); err != nil {
		return nil, err
	}
	for i, r := range runs {
		row := i + 2
		vals := []any{
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Backend.Label(),
			r.FileName,
			r.FileSize,
			string(r.Status),
			r.ErrorCode,
			truncate(r.ErrorMessage, 140),
			r.Method,
			r.Pages,
			r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
		}
		for c, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(runsSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	_ = f.SetColWidth(runsSheet, "A", "A", 22)
	_ = f.SetColWidth(runsSheet, "B", "C", 28)
	_ = f.SetColWidth(runsSheet, "G", "G", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.runs_xlsx.ok", "rows", len(runs))
	return buf.Bytes(), nil
}

// useSheet renames the default sheet so the workbook holds exactly one.
func useSheet(f *excelize.File, name string) error {
	def := f.GetSheetName(0)
	if def == name {
		return nil
	}
	if err := f.SetSheetName(def, name); err != nil {
		return err
	}
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, vals []string) error {
	for c, v := range vals {
		cell, err := excelize.CoordinatesToCellName(c+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, truncate(v, maxCellLen)); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
