package constants

import "strings"

// File formats accepted by the intake.
const (
	PDF = "PDF"
	CSV = "CSV"
)

// FileTypes holds every format an upload may have.
var FileTypes = []string{PDF, CSV}

// AllowedExtensions holds the upload extensions (lowercased, no dot).
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
	"csv": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat maps a normalized extension to PDF or CSV; "" if unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "csv":
		return CSV
	default:
		return ""
	}
}

// MimeType returns the content type sent to backends for a format.
func MimeType(format string) string {
	switch format {
	case PDF:
		return "application/pdf"
	case CSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
