package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/ticketscan/scan-backend/shared"
)

// insecureDevSecret is used only when JWT_SECRET is unset so local runs work
const insecureDevSecret = "dev-secret-change-me"

type Config struct {
	ServerPort            string
	DatabaseURL           string
	JWTSecret             string
	LogLevel              string
	LogFormat             string
	SchemaPath            string
	OCRCorrectionsPath    string
	RequestTimeoutSeconds string
	CORSOrigins           string
	MetricsReportMinutes  string
	SubmitIntervalMillis  string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	cfg := &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		SchemaPath:            getEnv("SCHEMA_PATH", "database/schema.sql"),
		OCRCorrectionsPath:    getEnv("OCR_CORRECTIONS_PATH", ""),
		RequestTimeoutSeconds: getEnv("REQUEST_TIMEOUT_SECONDS", "10"),
		CORSOrigins:           getEnv("CORS_ORIGINS", "http://localhost:3000"),
		MetricsReportMinutes:  getEnv("METRICS_REPORT_MINUTES", "15"),
		SubmitIntervalMillis:  getEnv("SCAN_SUBMIT_INTERVAL_MS", "250"),
	}

	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = insecureDevSecret
	}

	return cfg
}

// GetRequestTimeout returns the per-request deadline applied by the HTTP layer
func (c *Config) GetRequestTimeout() time.Duration {
	return parsePositiveDuration("REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds, time.Second, 10*time.Second)
}

// GetMetricsInterval returns how often the metrics report job runs
func (c *Config) GetMetricsInterval() time.Duration {
	return parsePositiveDuration("METRICS_REPORT_MINUTES", c.MetricsReportMinutes, time.Minute, 15*time.Minute)
}

// GetSubmitInterval returns the minimum delay between one user's scan submissions; 0 disables it
func (c *Config) GetSubmitInterval() time.Duration {
	const fallback = 250 * time.Millisecond
	if c.SubmitIntervalMillis == "" {
		return fallback
	}

	n, err := strconv.Atoi(c.SubmitIntervalMillis)
	if err != nil || n < 0 {
		logrus.Warnf("Invalid SCAN_SUBMIT_INTERVAL_MS value: %s, using default %s", c.SubmitIntervalMillis, fallback)
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

// GetAllowedOrigins returns the CORS origins as a list
func (c *Config) GetAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// UsesDevSecret reports whether tokens are verified with the development fallback
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == insecureDevSecret
}

// Unified builds the shared configuration from environment settings and defaults
func (c *Config) Unified() *shared.UnifiedConfiguration {
	unified := shared.NewDefaultUnifiedConfiguration()
	unified.Service.RequestTimeout = c.GetRequestTimeout()
	unified.Service.MetricsInterval = c.GetMetricsInterval()
	unified.Service.SubmitInterval = c.GetSubmitInterval()
	unified.Service.AllowedOrigins = strings.Join(c.GetAllowedOrigins(), ",")
	unified.Extraction.CorrectionsPath = c.OCRCorrectionsPath
	unified.Logging.Level = c.LogLevel
	unified.Logging.Format = c.LogFormat
	unified.ValidateAndApplyDefaults()
	return unified
}

func parsePositiveDuration(key, raw string, unit, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logrus.Warnf("Invalid %s value: %s, using default %s", key, raw, fallback)
		return fallback
	}

	return time.Duration(n) * unit
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
