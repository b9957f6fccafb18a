package runner

import (
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"empty url", func(c *Config) { c.BaseURL = "" }, "base url is required"},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://example.com" }, "scheme"},
		{"missing host", func(c *Config) { c.BaseURL = "http://" }, "missing host"},
		{"zero duration", func(c *Config) { c.DurationSec = 0 }, "duration"},
		{"zero rate", func(c *Config) { c.PeakRPS = 0 }, "peak rate"},
		{"negative delay", func(c *Config) { c.DelayMs = -1 }, "delay"},
		{"negative timeout", func(c *Config) { c.TimeoutSec = -1 }, "timeout"},
		{"missing path", func(c *Config) { c.UnsafePath = "" }, "paths are required"},
		{"same paths", func(c *Config) { c.UnsafePath = c.SafePath }, "must differ"},
		{"zero delay ok", func(c *Config) { c.DelayMs = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_TargetURL(t *testing.T) {
	cfg := Config{BaseURL: "https://demo.example.com/", DelayMs: 1500}

	if got := cfg.TargetURL("/unsafe"); got != "https://demo.example.com/unsafe?delay=1500" {
		t.Errorf("TargetURL() = %q", got)
	}
}

func TestConfig_ExpectedInflight(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ExpectedInflight(); got != 30 {
		t.Errorf("ExpectedInflight() = %d, want 30", got)
	}

	cfg.PeakRPS, cfg.DelayMs = 50, 2000
	if got := cfg.ExpectedInflight(); got != 100 {
		t.Errorf("ExpectedInflight() = %d, want 100", got)
	}
}
