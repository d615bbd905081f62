package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/basegraph/analystcore/core/db"
)

// ServiceType distinguishes processes sharing this config loader. It is
// recorded on Config and used as the default OTel service name; all other
// defaults are the same for every service type.
type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
)

// OTelConfig configures the OpenTelemetry exporters.
type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Enabled reports whether OTel export is configured.
func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// PipelineConfig configures the Redis-backed job/event pipeline.
type PipelineConfig struct {
	RedisURL      string
	RedisStream   string
	ConsumerGroup string
	LeaseSeconds  int
	MaxAttempts   int
}

// LLMConfig configures the completion and embedding providers the analyst,
// reasoning, and deep research agents share.
type LLMConfig struct {
	Provider       string // "openai" or "anthropic"
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	EmbeddingKey   string
}

// SemanticConfig locates the semantic model definition a worker's analyst
// tool compiles against and the SQL dialect it targets.
type SemanticConfig struct {
	ModelPath string
	Dialect   string
	TargetDSN string // data warehouse DSN the analyst tool executes SQL against
}

// Config holds all application configuration.
type Config struct {
	Env         string
	Port        string
	ServiceType ServiceType

	DB       db.Config
	Pipeline PipelineConfig
	OTel     OTelConfig
	LLM      LLMConfig
	Semantic SemanticConfig
}

// Load loads configuration from environment variables, using the given
// service type as the default OTel service name.
func Load(service ServiceType) (Config, error) {
	cfg := Config{
		Env:         getEnv("ANALYSTCORE_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		ServiceType: service,
		DB: db.Config{
			DSN:      buildDSN(),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Pipeline: PipelineConfig{
			RedisURL:      getEnv("PIPELINE_REDIS_URL", "redis://localhost:6379/0"),
			RedisStream:   getEnv("PIPELINE_REDIS_STREAM", "analystcore:jobs"),
			ConsumerGroup: getEnv("PIPELINE_CONSUMER_GROUP", "analystcore-workers"),
			LeaseSeconds:  getEnvInt("PIPELINE_LEASE_SECONDS", 60),
			MaxAttempts:   getEnvInt("PIPELINE_MAX_ATTEMPTS", 5),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", string(service)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		LLM: LLMConfig{
			Provider:       getEnv("LLM_PROVIDER", "openai"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			BaseURL:        getEnv("LLM_BASE_URL", ""),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingKey:   getEnv("LLM_EMBEDDING_API_KEY", ""),
		},
		Semantic: SemanticConfig{
			ModelPath: getEnv("SEMANTIC_MODEL_PATH", "semantic/model.yaml"),
			Dialect:   getEnv("SEMANTIC_DIALECT", "postgres"),
			TargetDSN: getEnv("SEMANTIC_TARGET_DSN", ""),
		},
	}

	if cfg.Pipeline.LeaseSeconds <= 0 {
		return Config{}, fmt.Errorf("invalid PIPELINE_LEASE_SECONDS: %d", cfg.Pipeline.LeaseSeconds)
	}

	return cfg, nil
}

// buildDSN constructs the database connection string from individual env vars.
func buildDSN() string {
	host := getEnv("DATABASE_HOST", "localhost")
	port := getEnv("DATABASE_PORT", "5432")
	user := getEnv("DATABASE_USER", "postgres")
	password := getEnv("DATABASE_PASSWORD", "postgres")
	name := getEnv("DATABASE_NAME", "analystcore")
	sslMode := getEnv("DATABASE_SSLMODE", "disable")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslMode,
	)
}

// IsProduction returns true if running in production environment.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development environment.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
