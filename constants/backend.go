package constants

import (
	"fmt"
	"strings"
)

// Backend identifies one of the supported third-party extraction services.
type Backend string

// Stable identifiers (used in URLs, CLI flags and the run history).
const (
	BackendVisionAI                  Backend = "vision-ai"
	BackendAWSTextract               Backend = "aws-textract"
	BackendLlamaParser               Backend = "llama-parser"
	BackendAzureDocumentIntelligence Backend = "azure-document-intelligence"
	BackendAzureCognitive            Backend = "azure-cognitive"
)

// Backends lists every backend in display order.
var Backends = []Backend{
	BackendVisionAI,
	BackendAWSTextract,
	BackendLlamaParser,
	BackendAzureDocumentIntelligence,
	BackendAzureCognitive,
}

var backendLabels = map[Backend]string{
	BackendVisionAI:                  "Vision AI",
	BackendAWSTextract:               "AWS Textract",
	BackendLlamaParser:               "Llama Parser",
	BackendAzureDocumentIntelligence: "Azure Document Intelligence",
	BackendAzureCognitive:            "Azure Cognitive",
}

// Label returns the human readable name shown in the selector.
func (b Backend) Label() string {
	if l, ok := backendLabels[b]; ok {
		return l
	}
	return string(b)
}

// Valid reports whether b is a known backend.
func (b Backend) Valid() bool {
	_, ok := backendLabels[b]
	return ok
}

func (b Backend) String() string { return string(b) }

// ParseBackend accepts either the identifier ("aws-textract") or the label ("AWS Textract").
func ParseBackend(s string) (Backend, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", fmt.Errorf("extractor is required")
	}
	for _, b := range Backends {
		if strings.EqualFold(v, string(b)) || strings.EqualFold(v, b.Label()) {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown extractor %q", s)
}
