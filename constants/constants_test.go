package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
	}{
		{"aws-textract", BackendAWSTextract},
		{"AWS Textract", BackendAWSTextract},
		{"  llama parser ", BackendLlamaParser},
		{"Azure Document Intelligence", BackendAzureDocumentIntelligence},
		{"AZURE-COGNITIVE", BackendAzureCognitive},
		{"Vision AI", BackendVisionAI},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseBackend("tesseract")
	assert.Error(t, err)
	_, err = ParseBackend("")
	assert.Error(t, err)
}

func TestBackendLabels(t *testing.T) {
	labels := make([]string, 0, len(Backends))
	for _, b := range Backends {
		assert.True(t, b.Valid())
		labels = append(labels, b.Label())
	}
	assert.Equal(t, []string{"Vision AI", "AWS Textract", "Llama Parser", "Azure Document Intelligence", "Azure Cognitive"}, labels)
	assert.False(t, Backend("other").Valid())
	assert.Equal(t, "other", Backend("other").Label())
}

func TestMapExtToFormat(t *testing.T) {
	assert.Equal(t, PDF, MapExtToFormat(".PDF"))
	assert.Equal(t, CSV, MapExtToFormat("csv"))
	assert.Equal(t, "", MapExtToFormat(".png"))
	assert.Equal(t, "pdf", NormalizeExt(" .Pdf"))
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, EnvironmentProduction, env)

	env, err = ParseEnvironment("development")
	require.NoError(t, err)
	assert.Equal(t, EnvironmentDevelopment, env)

	_, err = ParseEnvironment("Staging")
	assert.Error(t, err)
}
