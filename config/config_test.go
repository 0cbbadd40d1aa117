package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WHISPER_MODEL", "/models/ggml-base.bin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7890, cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.BackoffMin)
	assert.Equal(t, 2.0, cfg.BackoffFactor)
	assert.Equal(t, "@hourly", cfg.SweepSchedule)
	assert.Equal(t, 30, cfg.SegmentSeconds)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATA_DIR", "/srv/captioner")
	t.Setenv("STORE_BACKEND", "JSON")
	t.Setenv("LOG_LEVEL", "Debug")
	t.Setenv("BEHIND_PROXY", "true")
	t.Setenv("WORKERS", "8")
	t.Setenv("BACKOFF_MIN", "250ms")
	t.Setenv("BACKOFF_FACTOR", "1.5")
	t.Setenv("JOB_TIMEOUT", "1h")
	t.Setenv("WHISPER_MODEL", "/models/ggml-base.bin")
	t.Setenv("CONVERT_COMMAND", "uconv -x {type}")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "json", cfg.StoreBackend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.BehindProxy)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffMin)
	assert.Equal(t, 1.5, cfg.BackoffFactor)
	assert.Equal(t, time.Hour, cfg.JobTimeout)
	assert.Equal(t, "uconv -x {type}", cfg.ConvertCommand)
	assert.Equal(t, "/srv/captioner/work", cfg.WorkDir())
	assert.Equal(t, "/srv/captioner/output", cfg.OutputDir())
	assert.Equal(t, "/srv/captioner/uploads", cfg.UploadDir())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "abc"},
		{"WORKERS", "1.5"},
		{"BACKOFF_FACTOR", "fast"},
		{"BEHIND_PROXY", "maybe"},
		{"JOB_TIMEOUT", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid "+tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		t.Setenv("WHISPER_MODEL", "/models/ggml-base.bin")
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"backend", func(c *Config) { c.StoreBackend = "postgres" }, "STORE_BACKEND"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"workers", func(c *Config) { c.Workers = 0 }, "WORKERS"},
		{"attempts", func(c *Config) { c.MaxAttempts = 0 }, "MAX_ATTEMPTS"},
		{"backoff order", func(c *Config) { c.BackoffMax = time.Millisecond }, "BACKOFF_MAX"},
		{"factor", func(c *Config) { c.BackoffFactor = 0.5 }, "BACKOFF_FACTOR"},
		{"segment length", func(c *Config) { c.SegmentSeconds = 0 }, "SEGMENT_SECONDS"},
		{"model", func(c *Config) { c.WhisperModel = "" }, "WHISPER_MODEL"},
		{"token hash", func(c *Config) { c.APITokenHash = "plaintext" }, "API_TOKEN_HASH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "DATA_DIR")
	assert.Contains(t, err.Error(), "WHISPER_MODEL")
}
