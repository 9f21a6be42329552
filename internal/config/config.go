// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragchat/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: chat/selector model selection, temperature, embedder
//   - Storage: PostgreSQL connection and vector backend (see storage.go)
//   - Chunking and retrieval: window sizes, over-fetch factor, re-ranking
//   - Observability: OTLP trace export (see observability.go)
//
// Security: sensitive data (passwords) are never logged; config directory uses 0750 permissions.
// Validation: range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the configured vector dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates top-k or over-fetch factor is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidVectorBackend indicates an unsupported vector backend name.
	ErrInvalidVectorBackend = errors.New("invalid vector backend")

	// ErrInvalidQdrantAddr indicates the Qdrant address is invalid.
	ErrInvalidQdrantAddr = errors.New("invalid Qdrant address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation
	// Learning). The pgvector schema and Qdrant collections both use 768.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension is the vector dimension used across storage backends.
	// Changing it requires a migration of every stored vector.
	DefaultEmbedderDimension = 768
)

// Vector backend identifiers used in Config.VectorBackend.
const (
	VectorBackendPgvector = "pgvector"
	VectorBackendQdrant   = "qdrant"
)

// Config stores application configuration.
// SECURITY: sensitive fields must never be logged directly; use slog with
// individual non-sensitive fields instead of dumping the whole struct.
type Config struct {
	// AI model configuration. Model names are genkit identifiers,
	// e.g. "googleai/gemini-2.5-flash".
	ChatModelName     string  `mapstructure:"chat_model_name"`
	SelectorModelName string  `mapstructure:"selector_model_name"`
	Temperature       float32 `mapstructure:"temperature"`

	// Embedder configuration
	EmbedderModel     string `mapstructure:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension"`

	// Chunking configuration (characters)
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// Retrieval configuration
	RetrievalTopK   int  `mapstructure:"retrieval_top_k"`
	OverFetchFactor int  `mapstructure:"over_fetch_factor"`
	RerankEnabled   bool `mapstructure:"rerank_enabled"`

	// Vector backend selection: "pgvector" (default) or "qdrant"
	VectorBackend string `mapstructure:"vector_backend"`
	QdrantAddr    string `mapstructure:"qdrant_addr"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never log
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// HTTP server configuration
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)

	// Observability configuration (see observability.go)
	Otel OtelConfig `mapstructure:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragchat")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when present
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("chat_model_name", "googleai/gemini-2.5-flash")
	viper.SetDefault("selector_model_name", "googleai/gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)

	// Embedder defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Chunking defaults
	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 50)

	// Retrieval defaults
	viper.SetDefault("retrieval_top_k", 5)
	viper.SetDefault("over_fetch_factor", 2)
	viper.SetDefault("rerank_enabled", true)

	// Vector backend defaults
	viper.SetDefault("vector_backend", VectorBackendPgvector)
	viper.SetDefault("qdrant_addr", "localhost:6334")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "ragchat")
	viper.SetDefault("postgres_password", "ragchat_dev_password")
	viper.SetDefault("postgres_db_name", "ragchat")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// CORS defaults (frontend dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)

	// Observability defaults
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("otel.service_name", "ragchat")
	viper.SetDefault("otel.environment", "dev")
	viper.SetDefault("otel.enabled", false)
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by genkit, not via viper; its presence
// is checked in Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("chat_model_name", "RAGCHAT_CHAT_MODEL")
	mustBind("selector_model_name", "RAGCHAT_SELECTOR_MODEL")
	mustBind("embedder_model", "RAGCHAT_EMBEDDER_MODEL")

	mustBind("vector_backend", "RAGCHAT_VECTOR_BACKEND")
	mustBind("qdrant_addr", "RAGCHAT_QDRANT_ADDR")

	mustBind("cors_origins", "RAGCHAT_CORS_ORIGINS")
	mustBind("trust_proxy", "RAGCHAT_TRUST_PROXY")

	mustBind("otel.enabled", "RAGCHAT_OTEL_ENABLED")
	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}
