package shared

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds all configuration parameters for the entire application
type UnifiedConfiguration struct {
	Service    ServiceConfig    `json:"service"`
	Database   DatabaseConfig   `json:"database"`
	Extraction ExtractionConfig `json:"extraction"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServiceConfig holds HTTP service configuration
type ServiceConfig struct {
	RequestTimeout   time.Duration `json:"request_timeout"`
	BodyLimitBytes   int           `json:"body_limit_bytes"`
	AllowedOrigins   string        `json:"allowed_origins"`
	MetricsInterval  time.Duration `json:"metrics_interval"`
	SlowScanDuration time.Duration `json:"slow_scan_duration"`
	SubmitInterval   time.Duration `json:"submit_interval"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
	SlowQuery       time.Duration `json:"slow_query"`
}

// ExtractionConfig holds OCR extraction configuration
type ExtractionConfig struct {
	CorrectionsPath string `json:"corrections_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Service: ServiceConfig{
			RequestTimeout:   10 * time.Second,
			BodyLimitBytes:   1 * 1024 * 1024,
			AllowedOrigins:   "http://localhost:3000",
			MetricsInterval:  15 * time.Minute,
			SlowScanDuration: 500 * time.Millisecond,
			SubmitInterval:   250 * time.Millisecond,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
			SlowQuery:       200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "scan-backend",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	if c.Service.RequestTimeout <= 0 {
		c.Service.RequestTimeout = defaults.Service.RequestTimeout
		logger.Debug("Applied default Service.RequestTimeout")
	}

	if c.Service.BodyLimitBytes <= 0 {
		c.Service.BodyLimitBytes = defaults.Service.BodyLimitBytes
		logger.Debug("Applied default Service.BodyLimitBytes")
	}

	if c.Service.AllowedOrigins == "" {
		c.Service.AllowedOrigins = defaults.Service.AllowedOrigins
		logger.Debug("Applied default Service.AllowedOrigins")
	}

	if c.Service.MetricsInterval <= 0 {
		c.Service.MetricsInterval = defaults.Service.MetricsInterval
		logger.Debug("Applied default Service.MetricsInterval")
	}

	if c.Service.SlowScanDuration <= 0 {
		c.Service.SlowScanDuration = defaults.Service.SlowScanDuration
		logger.Debug("Applied default Service.SlowScanDuration")
	}

	// zero disables per-user throttling
	if c.Service.SubmitInterval < 0 {
		c.Service.SubmitInterval = defaults.Service.SubmitInterval
		logger.Debug("Applied default Service.SubmitInterval")
	}

	// Validate Database Config
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		c.Database.MaxIdleConns = c.Database.MaxOpenConns
		logger.Debug("Clamped Database.MaxIdleConns to MaxOpenConns")
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}

	if c.Database.ConnMaxIdleTime <= 0 {
		c.Database.ConnMaxIdleTime = defaults.Database.ConnMaxIdleTime
		logger.Debug("Applied default Database.ConnMaxIdleTime")
	}

	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
		logger.Debug("Applied default Database.PingTimeout")
	}

	if c.Database.SlowQuery <= 0 {
		c.Database.SlowQuery = defaults.Database.SlowQuery
		logger.Debug("Applied default Database.SlowQuery")
	}

	// Validate Logging Config
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		c.Logging.Level = defaults.Logging.Level
		logger.Debug("Applied default Logging.Level")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = defaults.Logging.Format
		logger.Debug("Applied default Logging.Format")
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ConfigureLogging applies the logging section to the global logrus logger
func (c LoggingConfig) ConfigureLogging() {
	level, err := logrus.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	if c.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
