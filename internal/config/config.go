// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// External job commands, as space-separated argv prefixes. The executor
	// appends the per-execution flags.
	SpreadsheetJobCmd []string
	ImageJobCmd       []string
	JobWorkDir        string        // Directory the optimizer tooling runs in.
	JobTimeout        time.Duration // 0 = wait indefinitely (original behavior).

	// Submission defaults and limits.
	DefaultMaxCompanies int
	MaxUploadBytes      int64 // Maximum multipart request size in bytes.

	// Scoring calibration. Arbitrary tuning values, not derived constants.
	ScoreSpacingMultiplier float64
	ScoreFallbackBaseline  float64

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel  string
	EnableMCP bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                   envInt("HALLPLAN_PORT", 8080),
		ReadTimeout:            envDuration("HALLPLAN_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:           envDuration("HALLPLAN_WRITE_TIMEOUT", 10*time.Minute),
		SpreadsheetJobCmd:      strings.Fields(envStr("HALLPLAN_SPREADSHEET_JOB", "python3 main.py")),
		ImageJobCmd:            strings.Fields(envStr("HALLPLAN_IMAGE_JOB", "python3 run_from_image.py")),
		JobWorkDir:             envStr("HALLPLAN_JOB_WORKDIR", ""),
		JobTimeout:             envDuration("HALLPLAN_JOB_TIMEOUT", 0),
		DefaultMaxCompanies:    envInt("HALLPLAN_DEFAULT_MAX_COMPANIES", 200),
		MaxUploadBytes:         int64(envInt("HALLPLAN_MAX_UPLOAD_BYTES", 32*1024*1024)), // 32 MB default
		ScoreSpacingMultiplier: envFloat("HALLPLAN_SCORE_SPACING_MULTIPLIER", 2.5),
		ScoreFallbackBaseline:  envFloat("HALLPLAN_SCORE_FALLBACK_BASELINE", 10),
		OTELEndpoint:           envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:           envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:            envStr("OTEL_SERVICE_NAME", "hallplan"),
		LogLevel:               envStr("HALLPLAN_LOG_LEVEL", "info"),
		EnableMCP:              envBool("HALLPLAN_MCP", false),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c Config) Validate() error {
	if len(c.SpreadsheetJobCmd) == 0 {
		return fmt.Errorf("config: HALLPLAN_SPREADSHEET_JOB is required")
	}
	if len(c.ImageJobCmd) == 0 {
		return fmt.Errorf("config: HALLPLAN_IMAGE_JOB is required")
	}
	if c.DefaultMaxCompanies <= 0 {
		return fmt.Errorf("config: HALLPLAN_DEFAULT_MAX_COMPANIES must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: HALLPLAN_MAX_UPLOAD_BYTES must be positive")
	}
	if c.ScoreSpacingMultiplier <= 0 || c.ScoreFallbackBaseline <= 0 {
		return fmt.Errorf("config: scoring calibration values must be positive")
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("config: HALLPLAN_JOB_TIMEOUT must not be negative")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
