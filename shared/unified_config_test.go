package shared

import (
	"strings"
	"testing"
	"time"
)

func TestValidateAndApplyDefaults(t *testing.T) {
	cfg := &UnifiedConfiguration{
		Database: DatabaseConfig{MaxOpenConns: 4, MaxIdleConns: 10},
		Logging:  LoggingConfig{Level: "loud", Format: "xml"},
	}
	cfg.ValidateAndApplyDefaults()

	if cfg.Database.MaxOpenConns != 4 {
		t.Errorf("MaxOpenConns = %d, want 4 (explicit value kept)", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns != 4 {
		t.Errorf("MaxIdleConns = %d, want clamp to 4", cfg.Database.MaxIdleConns)
	}
	if cfg.Database.PingTimeout != 5*time.Second {
		t.Errorf("PingTimeout = %v, want default 5s", cfg.Database.PingTimeout)
	}
	if cfg.Service.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want default 10s", cfg.Service.RequestTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Logging.Format)
	}
}

func TestToJSONIncludesSections(t *testing.T) {
	cfg := NewDefaultUnifiedConfiguration()
	cfg.Extraction.CorrectionsPath = "/etc/scan/corrections.json"

	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	out := string(data)
	for _, want := range []string{`"database"`, `"service"`, `"extraction"`, `"logging"`, "/etc/scan/corrections.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("ToJSON output missing %s:\n%s", want, out)
		}
	}
}
