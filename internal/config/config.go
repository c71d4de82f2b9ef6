// Package config holds the tlstap runtime configuration.
package config

import (
	"fmt"

	"tlstap/internal/bpf"

	"github.com/caarlos0/env/v11"
)

// Config is the resolved runtime configuration. Values come from TLSTAP_*
// environment variables, overridden by command-line flags.
type Config struct {
	// PID is the traced process. 0 attaches to every process using the
	// library.
	PID int `env:"TLSTAP_PID"`
	// LibPath overrides libssl discovery.
	LibPath string `env:"TLSTAP_LIBSSL"`
	// Symbol is the function to instrument.
	Symbol string `env:"TLSTAP_SYMBOL" envDefault:"SSL_write"`
	// Address attaches at a pre-resolved offset instead of a symbol.
	Address uint64 `env:"TLSTAP_ADDRESS"`
	// CaptureBytes bounds the payload snapshot per event, at most
	// bpf.MaxCapture.
	CaptureBytes uint32 `env:"TLSTAP_CAPTURE_BYTES" envDefault:"256"`
	// PerfBufferKB is the per-CPU perf ring size.
	PerfBufferKB int `env:"TLSTAP_PERF_BUFFER_KB" envDefault:"64"`
	// Filter is an optional expr predicate over capture events.
	Filter string `env:"TLSTAP_FILTER"`
	// MetricsAddr enables the Prometheus listener when non-empty.
	MetricsAddr string `env:"TLSTAP_METRICS_ADDR"`
	// OTELEnabled turns on span export for each capture.
	OTELEnabled bool `env:"TLSTAP_OTEL"`
	// Quiet suppresses payload hexdumps.
	Quiet bool
}

// FromEnv builds a Config from environment variables and defaults. Flag
// parsing layers on top of the result.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing TLSTAP_* environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints before any kernel state is touched.
func (c *Config) Validate() error {
	if c.PID < 0 {
		return fmt.Errorf("pid must be non-negative, got %d", c.PID)
	}
	if c.CaptureBytes == 0 || c.CaptureBytes > bpf.MaxCapture {
		return fmt.Errorf("capture-bytes must be in 1..%d, got %d", bpf.MaxCapture, c.CaptureBytes)
	}
	if c.PerfBufferKB <= 0 {
		return fmt.Errorf("perf-buffer-kb must be positive, got %d", c.PerfBufferKB)
	}
	if c.Symbol == "" && c.Address == 0 {
		return fmt.Errorf("either a symbol or an address is required")
	}
	return nil
}
