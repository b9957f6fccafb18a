package runner

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	BaseURL    string `json:"base_url"`
	SafePath   string `json:"safe_path"`
	UnsafePath string `json:"unsafe_path"`

	DurationSec int `json:"duration_sec"` // per path
	PeakRPS     int `json:"peak_rps"`
	DelayMs     int `json:"delay_ms"` // server-side, sent as ?delay=

	// 0 keeps the http.Client default (no timeout)
	TimeoutSec int `json:"timeout_sec"`

	// Insecure skips TLS certificate verification.
	Insecure bool `json:"insecure,omitempty"`
}

// DefaultConfig targets a local demo target at 30 rps for 20s per path.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:3000",
		SafePath:    "/safe",
		UnsafePath:  "/unsafe",
		DurationSec: 20,
		PeakRPS:     30,
		DelayMs:     1000,
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base url %q: missing host", c.BaseURL)
	}
	if c.DurationSec <= 0 {
		return fmt.Errorf("duration must be greater than 0, got %d", c.DurationSec)
	}
	if c.PeakRPS <= 0 {
		return fmt.Errorf("peak rate must be greater than 0, got %d", c.PeakRPS)
	}
	if c.DelayMs < 0 {
		return fmt.Errorf("delay cannot be negative, got %d", c.DelayMs)
	}
	if c.TimeoutSec < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", c.TimeoutSec)
	}
	if c.SafePath == "" || c.UnsafePath == "" {
		return errors.New("both safe and unsafe paths are required")
	}
	if c.SafePath == c.UnsafePath {
		return fmt.Errorf("safe and unsafe paths must differ, both are %q", c.SafePath)
	}
	return nil
}

// TargetURL builds GET {base}{path}?delay={delay}.
func (c Config) TargetURL(path string) string {
	return fmt.Sprintf("%s%s?delay=%d", strings.TrimRight(c.BaseURL, "/"), path, c.DelayMs)
}

// ExpectedInflight is the rough number of concurrent requests at peak rate.
func (c Config) ExpectedInflight() int {
	return int(float64(c.PeakRPS)*float64(c.DelayMs)/1000 + 0.5)
}

// FailureKind separates why a probe failed so target-side changes are easy to spot.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransport FailureKind = "transport"
	FailureProtocol  FailureKind = "protocol"
	FailureDecode    FailureKind = "decode"
)

// Outcome is the result of one probe. Succeeded implies CorrelationID != "".
type Outcome struct {
	CorrelationID string      `json:"correlation_id"`
	LatencyMs     int64       `json:"latency_ms"`
	Succeeded     bool        `json:"succeeded"`
	ErrorDetail   string      `json:"error_detail,omitempty"`
	Failure       FailureKind `json:"failure,omitempty"`
	Status        int         `json:"status,omitempty"`

	// Mismatch is set when the target read a different id on its second read.
	Mismatch bool `json:"mismatch,omitempty"`

	TimeStamp time.Time `json:"timestamp"`
}

// Phase is one segment of the load schedule.
type Phase struct {
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	StartRate int           `json:"start_rate"`
	EndRate   int           `json:"end_rate"`
}
