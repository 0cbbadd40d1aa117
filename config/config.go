package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	Domain       string
	DataDir      string
	StoreBackend string
	LogLevel     string
	BehindProxy  bool

	Workers           int
	MaxActiveSessions int
	MaxAttempts       int
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	BackoffFactor     float64
	JobTimeout        time.Duration
	PollInterval      time.Duration
	ShutdownGrace     time.Duration

	IdleWindow           time.Duration
	DefaultRetentionDays int
	SweepSchedule        string

	MaxUploadSizeMB  int
	APITokenHash     string
	TelegramBotToken string
	WatchDir         string
	StylesPath       string

	SegmentSeconds  int
	FFmpegBinary    string
	FFprobeBinary   string
	WhisperBinary   string
	WhisperModel    string
	WhisperLanguage string
	WhisperThreads  int
	ConvertCommand  string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := parser{}
	cfg := &Config{
		Port:         p.integer("PORT", 7890),
		Domain:       getEnv("DOMAIN", "localhost:7890"),
		DataDir:      getEnv("DATA_DIR", "/data"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		BehindProxy:  p.boolean("BEHIND_PROXY", false),

		Workers:           p.integer("WORKERS", 4),
		MaxActiveSessions: p.integer("MAX_ACTIVE_SESSIONS", 8),
		MaxAttempts:       p.integer("MAX_ATTEMPTS", 3),
		BackoffMin:        p.duration("BACKOFF_MIN", 2*time.Second),
		BackoffMax:        p.duration("BACKOFF_MAX", 2*time.Minute),
		BackoffFactor:     p.float("BACKOFF_FACTOR", 2),
		JobTimeout:        p.duration("JOB_TIMEOUT", 15*time.Minute),
		PollInterval:      p.duration("POLL_INTERVAL", 500*time.Millisecond),
		ShutdownGrace:     p.duration("SHUTDOWN_GRACE", 30*time.Second),

		IdleWindow:           p.duration("IDLE_WINDOW", 24*time.Hour),
		DefaultRetentionDays: p.integer("DEFAULT_RETENTION_DAYS", 7),
		SweepSchedule:        getEnv("SWEEP_SCHEDULE", "@hourly"),

		MaxUploadSizeMB:  p.integer("MAX_UPLOAD_SIZE_MB", 500),
		APITokenHash:     os.Getenv("API_TOKEN_HASH"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		WatchDir:         os.Getenv("WATCH_DIR"),
		StylesPath:       os.Getenv("STYLES_PATH"),

		SegmentSeconds:  p.integer("SEGMENT_SECONDS", 30),
		FFmpegBinary:    getEnv("FFMPEG_BINARY", "ffmpeg"),
		FFprobeBinary:   getEnv("FFPROBE_BINARY", "ffprobe"),
		WhisperBinary:   getEnv("WHISPER_BINARY", "whisper-cli"),
		WhisperModel:    os.Getenv("WHISPER_MODEL"),
		WhisperLanguage: getEnv("WHISPER_LANGUAGE", "auto"),
		WhisperThreads:  p.integer("WHISPER_THREADS", 4),
		ConvertCommand:  os.Getenv("CONVERT_COMMAND"),
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Validate checks ranges and combinations Load cannot express.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Port > 0 && c.Port < 65536, "PORT must be between 1 and 65535, got %d", c.Port)
	check(c.DataDir != "", "DATA_DIR is required")
	check(c.StoreBackend == "sqlite" || c.StoreBackend == "json", "STORE_BACKEND must be sqlite or json, got %q", c.StoreBackend)
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		check(false, "LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	check(c.Workers >= 1, "WORKERS must be at least 1")
	check(c.MaxActiveSessions >= 1, "MAX_ACTIVE_SESSIONS must be at least 1")
	check(c.MaxAttempts >= 1, "MAX_ATTEMPTS must be at least 1")
	check(c.BackoffMin > 0, "BACKOFF_MIN must be positive")
	check(c.BackoffMax >= c.BackoffMin, "BACKOFF_MAX must not be below BACKOFF_MIN")
	check(c.BackoffFactor >= 1, "BACKOFF_FACTOR must be at least 1")
	check(c.JobTimeout > 0, "JOB_TIMEOUT must be positive")
	check(c.PollInterval > 0, "POLL_INTERVAL must be positive")
	check(c.ShutdownGrace > 0, "SHUTDOWN_GRACE must be positive")
	check(c.IdleWindow >= 0, "IDLE_WINDOW must not be negative")
	check(c.DefaultRetentionDays >= 0, "DEFAULT_RETENTION_DAYS must not be negative")
	check(c.MaxUploadSizeMB >= 1, "MAX_UPLOAD_SIZE_MB must be at least 1")
	check(c.SegmentSeconds >= 1 && c.SegmentSeconds <= 600, "SEGMENT_SECONDS must be between 1 and 600, got %d", c.SegmentSeconds)
	check(c.WhisperModel != "", "WHISPER_MODEL is required")
	check(c.WhisperThreads >= 1, "WHISPER_THREADS must be at least 1")
	check(c.APITokenHash == "" || strings.HasPrefix(c.APITokenHash, "$2"), "API_TOKEN_HASH must be a bcrypt hash (see: captioner hash-token)")

	return errors.Join(errs...)
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.DefaultRetentionDays) * 24 * time.Hour
}

func (c *Config) WorkDir() string   { return filepath.Join(c.DataDir, "work") }
func (c *Config) OutputDir() string { return filepath.Join(c.DataDir, "output") }
func (c *Config) UploadDir() string { return filepath.Join(c.DataDir, "uploads") }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser keeps the first parse error so Load reports one invalid variable.
type parser struct {
	err error
}

func (p *parser) integer(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) boolean(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(def)))
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, def.String()))
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
