// Package api serves the home-automation query surface over echo.
package api

import (
	"net"
	"strconv"
	"time"

	"github.com/tphakala/birdnet-api2ha/internal/conf"
	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Location defines "today" and the week boundary for period=week.
	Location *time.Location

	// MetricsEnabled exposes /metrics when a registry is supplied.
	MetricsEnabled bool

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8081,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Location:        time.Local,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Host = settings.HTTPHost
	cfg.Port = settings.HTTPPort
	cfg.Location = settings.Location()
	cfg.MetricsEnabled = settings.Metrics.Enabled
	cfg.RateLimit = settings.HTTPRateLimit
	return cfg
}

// Validate checks the configuration for errors. Port 0 picks a free port.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Newf("invalid HTTP port: %d", c.Port).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if c.RateLimit < 0 {
		return errors.Newf("invalid HTTP rate limit: %g", c.RateLimit).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.Newf("HTTP read and write timeouts must be positive").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
