package config

import (
	"errors"
	"testing"
)

// validBaseConfig returns a Config with all required fields set.
func validBaseConfig() *Config {
	return &Config{
		ChatModelName:     "googleai/gemini-2.5-flash",
		SelectorModelName: "googleai/gemini-2.5-flash",
		Temperature:       0.7,
		EmbedderModel:     "gemini-embedding-001",
		EmbedderDimension: 768,
		ChunkSize:         500,
		ChunkOverlap:      50,
		RetrievalTopK:     5,
		OverFetchFactor:   2,
		VectorBackend:     VectorBackendPgvector,
		PostgresHost:      "localhost",
		PostgresPort:      5432,
		PostgresPassword:  "test_password",
		PostgresDBName:    "ragchat",
		PostgresSSLMode:   "disable",
	}
}

func TestValidateSuccess(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	cfg := validBaseConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with valid config: %v", err)
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validBaseConfig()
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() error = %v, want ErrConfigNil", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty chat model",
			mutate:  func(c *Config) { c.ChatModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty selector model",
			mutate:  func(c *Config) { c.SelectorModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "zero embedder dimension",
			mutate:  func(c *Config) { c.EmbedderDimension = 0 },
			wantErr: ErrInvalidEmbedderDimension,
		},
		{
			name:    "embedder dimension not matching storage schema",
			mutate:  func(c *Config) { c.EmbedderDimension = 1536 },
			wantErr: ErrInvalidEmbedderDimension,
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap not smaller than chunk size",
			mutate:  func(c *Config) { c.ChunkOverlap = 500 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "zero top-k",
			mutate:  func(c *Config) { c.RetrievalTopK = 0 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "excessive over-fetch factor",
			mutate:  func(c *Config) { c.OverFetchFactor = 11 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "unknown vector backend",
			mutate:  func(c *Config) { c.VectorBackend = "milvus" },
			wantErr: ErrInvalidVectorBackend,
		},
		{
			name: "qdrant backend without address",
			mutate: func(c *Config) {
				c.VectorBackend = VectorBackendQdrant
				c.QdrantAddr = ""
			},
			wantErr: ErrInvalidQdrantAddr,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty postgres database",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "short postgres password",
			mutate:  func(c *Config) { c.PostgresPassword = "short" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQdrantBackend(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	cfg := validBaseConfig()
	cfg.VectorBackend = VectorBackendQdrant
	cfg.QdrantAddr = "localhost:6334"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with qdrant backend: %v", err)
	}
}
