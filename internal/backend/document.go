package backend

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Document is the text a backend returned for a file.
type Document struct {
	Text   string
	Pages  int
	Method string // e.g. "vision-files-annotate", "textract-detect"
}

// Table is tabular data loaded from a CSV upload.
type Table struct {
	Headers []string
	Rows    [][]string
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// Normalize unifies line endings, trims trailing spaces and collapses runs of blank lines.
// It does not touch characters inside a line.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ReadFile loads a staged file; providers send it inline.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
