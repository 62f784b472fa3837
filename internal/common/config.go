package common

import (
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/elsai-console/constants"
)

// Config holds all application configuration. It is built once at startup
// and handed to each component; nothing reads the environment afterwards.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	History  HistoryConfig
	Cache    CacheConfig
	Backends BackendsConfig
	Pezzo    PezzoConfig
	Log      LogConfig
}

// ServerConfig holds HTTP/gRPC listener settings.
type ServerConfig struct {
	HTTPAddr                 string
	GRPCAddr                 string
	RateLimitPerSecond       float64
	RateLimitBurst           int
	MaxConcurrentExtractions int
	ExtractTimeout           time.Duration // 0 = no timeout
	ShutdownTimeout          time.Duration
}

// UploadConfig controls the temporary file intake.
type UploadConfig struct {
	TempDir      string
	MaxBytes     int64
	SniffContent bool
}

// HistoryConfig configures the optional run history store.
type HistoryConfig struct {
	DSN         string // "" disables history
	MaxConns    int32
	DialTimeout time.Duration
}

// CacheConfig configures the optional prompt cache.
type CacheConfig struct {
	RedisURL  string
	PromptTTL time.Duration
}

// BackendsConfig carries one credential bundle per extraction backend.
type BackendsConfig struct {
	VisionAI             VisionAIConfig
	Textract             TextractConfig
	DocumentIntelligence AzureConfig
	Cognitive            AzureConfig
	LlamaParse           LlamaParseConfig
	PollInterval         time.Duration
	PollTimeout          time.Duration
}

type VisionAIConfig struct {
	APIKey   string
	Endpoint string // optional override of the Vision API base URL
}

type TextractConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

type AzureConfig struct {
	Endpoint string
	Key      string
}

type LlamaParseConfig struct {
	APIKey string
}

// PezzoConfig holds the defaults pre-filled in the prompt panel.
type PezzoConfig struct {
	APIKey      string
	ProjectID   string
	ServerURL   string
	Environment string
	Timeout     time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string // text | json
}

// LoadConfig loads configuration from the secret store (environment first, then dotenv files).
func LoadConfig(s *SecretStore) *Config {
	if s == nil {
		s = NewSecretStore()
	}
	return &Config{
		Server: ServerConfig{
			HTTPAddr:                 s.getEnv("HTTP_ADDR", ":8501"),
			GRPCAddr:                 s.getEnv("GRPC_ADDR", ":9090"),
			RateLimitPerSecond:       s.getEnvAsFloat64("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:           s.getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
			MaxConcurrentExtractions: s.getEnvAsInt("MAX_CONCURRENT_EXTRACTIONS", 1),
			ExtractTimeout:           s.getEnvAsDuration("EXTRACT_TIMEOUT", 0),
			ShutdownTimeout:          s.getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Upload: UploadConfig{
			TempDir:      s.getEnv("UPLOAD_TEMP_DIR", ""),
			MaxBytes:     s.getEnvAsInt64("UPLOAD_MAX_BYTES", 25<<20),
			SniffContent: s.getEnvAsBool("UPLOAD_SNIFF_CONTENT", true),
		},
		History: HistoryConfig{
			DSN:         s.getEnv("HISTORY_DSN", ""),
			MaxConns:    s.getEnvAsInt32("HISTORY_MAX_CONNS", 4),
			DialTimeout: s.getEnvAsDuration("HISTORY_DIAL_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			RedisURL:  s.getEnv("REDIS_URL", ""),
			PromptTTL: s.getEnvAsDuration("PROMPT_CACHE_TTL", 0),
		},
		Backends: BackendsConfig{
			VisionAI: VisionAIConfig{
				APIKey:   s.getEnv("VISIONAI_API_KEY", ""),
				Endpoint: s.getEnv("VISIONAI_ENDPOINT", ""),
			},
			Textract: TextractConfig{
				AccessKeyID:     s.getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: s.getEnv("AWS_SECRET_ACCESS_KEY", ""),
				SessionToken:    s.getEnv("AWS_SESSION_TOKEN", ""),
				Region:          s.getEnv("AWS_REGION", "us-east-1"),
			},
			DocumentIntelligence: AzureConfig{
				Endpoint: s.getEnv("VISION_ENDPOINT", ""),
				Key:      s.getEnv("VISION_KEY", ""),
			},
			Cognitive: AzureConfig{
				Endpoint: s.getEnv("AZURE_COGNITIVE_SERVICE_ENDPOINT", ""),
				Key:      s.getEnv("AZURE_COGNITIVE_SERVICE_SUBSCRIPTION_KEY", ""),
			},
			LlamaParse: LlamaParseConfig{
				APIKey: s.getEnv("LLAMA_PARSER_API_KEY", ""),
			},
			PollInterval: s.getEnvAsDuration("AZURE_POLL_INTERVAL", time.Second),
			PollTimeout:  s.getEnvAsDuration("AZURE_POLL_TIMEOUT", 2*time.Minute),
		},
		Pezzo: PezzoConfig{
			APIKey:      s.getEnv("PEZZO_API_KEY", ""),
			ProjectID:   s.getEnv("PEZZO_PROJECT_ID", ""),
			ServerURL:   s.getEnv("PEZZO_SERVER_URL", constants.DefaultPezzoServerURL),
			Environment: s.getEnv("PEZZO_ENVIRONMENT", string(constants.EnvironmentProduction)),
			Timeout:     s.getEnvAsDuration("PEZZO_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  s.getEnv("LOG_LEVEL", "info"),
			Format: s.getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for secret/environment parsing
func (s *SecretStore) getEnv(key, defaultValue string) string {
	return s.Get(key, defaultValue)
}

func (s *SecretStore) getEnvAsInt(key string, defaultValue int) int {
	if value, ok := s.Lookup(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (s *SecretStore) getEnvAsInt32(key string, defaultValue int32) int32 {
	if value, ok := s.Lookup(key); ok {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func (s *SecretStore) getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, ok := s.Lookup(key); ok {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (s *SecretStore) getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value, ok := s.Lookup(key); ok {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func (s *SecretStore) getEnvAsBool(key string, defaultValue bool) bool {
	if value, ok := s.Lookup(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (s *SecretStore) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := s.Lookup(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks settings that would otherwise fail at first use.
// Missing backend credentials are not an error here; they surface per request.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfigError, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfigError, "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxConcurrentExtractions < 1 {
		return NewAppError(CodeConfigError, "MAX_CONCURRENT_EXTRACTIONS must be at least 1", ErrInvalidInput)
	}
	if c.Upload.MaxBytes <= 0 {
		return NewAppError(CodeConfigError, "UPLOAD_MAX_BYTES must be positive", ErrInvalidInput)
	}
	if _, err := constants.ParseEnvironment(c.Pezzo.Environment); err != nil {
		return NewAppError(CodeConfigError, "PEZZO_ENVIRONMENT must be Production or Development", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return NewAppError(CodeConfigError, "LOG_FORMAT must be text or json", ErrInvalidInput)
	}
	return nil
}
