package extract

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/backend"
	"github.com/joseph-ayodele/elsai-console/internal/common"
)

// Kind tags the payload carried by a Result.
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
)

// Result is what a backend produced for one file.
type Result struct {
	Backend  constants.Backend `json:"backend"`
	Kind     Kind              `json:"kind"`
	Text     string            `json:"text,omitempty"`
	Table    *backend.Table    `json:"table,omitempty"`
	Pages    int               `json:"pages,omitempty"`
	Method   string            `json:"method,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Display renders the payload as plain text (tables as tab-separated rows).
func (r Result) Display() string {
	if r.Kind != KindTable || r.Table == nil {
		return r.Text
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(r.Table.Headers, "\t"))
	for _, row := range r.Table.Rows {
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(row, "\t"))
	}
	return sb.String()
}

// Extractor is a constructed backend client: file path -> Result.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Provider describes one backend: what it accepts, what it needs and how to build it.
type Provider struct {
	Backend constants.Backend
	Formats []string // constants.PDF / constants.CSV
	// Missing returns the names of required settings that are empty.
	Missing func(cfg common.BackendsConfig) []string
	New     func(ctx context.Context, cfg common.BackendsConfig, logger *slog.Logger) (Extractor, error)
}

// Accepts reports whether the provider takes files of format.
func (p Provider) Accepts(format string) bool {
	return slices.Contains(p.Formats, format)
}

// Registry maps each backend to its provider.
type Registry map[constants.Backend]Provider

type setting struct {
	key   string
	value string
}

func missing(settings ...setting) []string {
	var out []string
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			out = append(out, s.key)
		}
	}
	return out
}
