package common

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoadConfigDefaults(t *testing.T) {
	store := &SecretStore{lookupEnv: noEnv}
	cfg := LoadConfig(store)

	assert.Equal(t, ":8501", cfg.Server.HTTPAddr)
	assert.Equal(t, 1, cfg.Server.MaxConcurrentExtractions)
	assert.Zero(t, cfg.Server.ExtractTimeout)
	assert.Equal(t, int64(25<<20), cfg.Upload.MaxBytes)
	assert.True(t, cfg.Upload.SniffContent)
	assert.Equal(t, "us-east-1", cfg.Backends.Textract.Region)
	assert.Equal(t, "https://elsai-prompts-proxy.optisolbusiness.com", cfg.Pezzo.ServerURL)
	assert.Equal(t, "Production", cfg.Pezzo.Environment)
	assert.Empty(t, cfg.Pezzo.APIKey)
	assert.Empty(t, cfg.History.DSN)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromSecrets(t *testing.T) {
	store := &SecretStore{lookupEnv: noEnv, files: []map[string]string{
		{
			"VISIONAI_API_KEY":      "vk",
			"AWS_ACCESS_KEY_ID":     "ak",
			"AWS_SECRET_ACCESS_KEY": "sk",
			"AWS_REGION":            "eu-west-1",
			"VISION_ENDPOINT":       "https://di.example.com",
			"VISION_KEY":            "dk",
			"UPLOAD_MAX_BYTES":      "1024",
			"EXTRACT_TIMEOUT":       "30s",
		},
		{"VISIONAI_API_KEY": "ignored", "PEZZO_PROJECT_ID": "proj"},
	}}
	cfg := LoadConfig(store)

	assert.Equal(t, "vk", cfg.Backends.VisionAI.APIKey)
	assert.Equal(t, "eu-west-1", cfg.Backends.Textract.Region)
	assert.Equal(t, "https://di.example.com", cfg.Backends.DocumentIntelligence.Endpoint)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.ExtractTimeout)
	assert.Equal(t, "proj", cfg.Pezzo.ProjectID)
}

func TestSecretStoreEnvironmentWins(t *testing.T) {
	t.Setenv("LLAMA_PARSER_API_KEY", "from-env")
	store := NewSecretStore(map[string]string{"LLAMA_PARSER_API_KEY": "from-file"})
	assert.Equal(t, "from-env", LoadConfig(store).Backends.LlamaParse.APIKey)
}

func TestLoadSecretStoreReadsDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	require.NoError(t, os.WriteFile(path, []byte("ELSAI_TEST_SECRET=abc\n"), 0o600))

	store, err := LoadSecretStore(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	v, ok := store.Lookup("ELSAI_TEST_SECRET")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig(&SecretStore{lookupEnv: noEnv})
	cfg.Server.MaxConcurrentExtractions = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, CodeConfigError, CodeOf(err))

	cfg = LoadConfig(&SecretStore{lookupEnv: noEnv})
	cfg.Pezzo.Environment = "Staging"
	assert.Error(t, cfg.Validate())
}

func TestSeverityAndCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		severity Severity
		http     int
		grpc     codes.Code
	}{
		{"config missing", ConfigMissing("no key"), CodeConfigMissing, SeverityWarning, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{"unsupported", UnsupportedFormat("csv only"), CodeUnsupportedFormat, SeverityWarning, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{"invalid upload", InvalidUpload("too big"), CodeInvalidUpload, SeverityWarning, http.StatusUnprocessableEntity, codes.InvalidArgument},
		{"backend", BackendCallFailed("AWS Textract", errors.New("boom")), CodeBackendCallFailed, SeverityError, http.StatusBadGateway, codes.Unavailable},
		{"plain", errors.New("x"), CodeInternal, SeverityError, http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.severity, SeverityOf(tt.err))
			assert.Equal(t, tt.http, HTTPStatus(tt.err))
			assert.Equal(t, tt.grpc, status.Code(GRPCError(tt.err)))
		})
	}
	assert.Equal(t, SeverityNone, SeverityOf(nil))
}

func TestBackendCallFailedKeepsCause(t *testing.T) {
	cause := errors.New("Connect timeout on endpoint URL")
	err := BackendCallFailed("AWS Textract", cause)

	assert.ErrorIs(t, err, ErrBackendCall)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Connect timeout on endpoint URL")
	assert.Equal(t, "AWS Textract: Connect timeout on endpoint URL", UserMessage(err))

	warn := ConfigMissing("Please provide API Key and Project ID")
	assert.ErrorIs(t, warn, ErrConfigMissing)
	assert.Equal(t, "Please provide API Key and Project ID", UserMessage(warn))
	assert.Equal(t, "CONFIG_MISSING: Please provide API Key and Project ID", warn.Error())
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("api_key", "", Required).
		Field("environment", "Staging", OneOf("Production", "Development")).
		Field("server_url", "ftp://x", HTTPURL).
		Field("name", "abcdef", MaxLength(3))
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)
	assert.Equal(t, CodeInvalidInput, CodeOf(v.Err()))

	ok := NewValidator().
		Field("api_key", "k", Required).
		Field("environment", "Production", OneOf("Production", "Development")).
		Field("server_url", "https://example.com", HTTPURL)
	assert.NoError(t, ok.Err())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
