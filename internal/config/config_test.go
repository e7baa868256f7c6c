package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 10*time.Minute, cfg.IdempotencySweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime())
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORAGE_BACKEND", "memory")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StorageBackend:           StoragePostgres,
			DatabaseURL:              "postgres://localhost/opsledger",
			JWTSecret:                "s",
			Port:                     8080,
			IdempotencyTTL:           time.Hour,
			IdempotencySweepInterval: time.Minute,
			DBMaxOpenConns:           10,
			DBMaxIdleConns:           5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"memory without url", func(c *Config) { c.StorageBackend = StorageMemory; c.DatabaseURL = "" }, ""},
		{"unknown backend", func(c *Config) { c.StorageBackend = "sqlite" }, "STORAGE_BACKEND"},
		{"bad port", func(c *Config) { c.Port = 0 }, "PORT"},
		{"zero ttl", func(c *Config) { c.IdempotencyTTL = 0 }, "IDEMPOTENCY_TTL"},
		{"idle above open", func(c *Config) { c.DBMaxIdleConns = 20 }, "DB_MAX_IDLE_CONNS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
