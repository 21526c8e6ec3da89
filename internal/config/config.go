package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/wesleywu/routewatch/internal/logger"
	"github.com/wesleywu/routewatch/internal/routing/codec"
	"github.com/wesleywu/routewatch/internal/routing/platform"
)

// MinBufferSize is the smallest accepted receive buffer, one page
const MinBufferSize = 4096

// Config represents the configuration for the route mirror
type Config struct {
	LogLevel string

	// Transport
	BufferSize     int
	MaxRequestSize int
	QueryTimeout   time.Duration

	// Interface resolution
	ResolveWorkers int

	// Monitor mode
	MetricsAddr string
	Watch       []string
}

// NewConfig creates a new config with default values
func NewConfig() *Config {
	return &Config{
		LogLevel:       "info",
		BufferSize:     platform.DefaultBufferSize,
		MaxRequestSize: codec.DefaultMaxRequestSize,
		QueryTimeout:   30 * time.Second,
		ResolveWorkers: 16,
	}
}

// Validate checks the configuration for values the transport cannot work with
func (c *Config) Validate() error {
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.BufferSize < MinBufferSize {
		return fmt.Errorf("buffer size %d is below the minimum of %d", c.BufferSize, MinBufferSize)
	}
	if c.MaxRequestSize < codec.HeaderLen+codec.RouteHeaderLen {
		return fmt.Errorf("max request size %d cannot hold a route request", c.MaxRequestSize)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query timeout must not be negative, got %v", c.QueryTimeout)
	}
	if c.ResolveWorkers <= 0 {
		return fmt.Errorf("resolve workers must be positive, got %d", c.ResolveWorkers)
	}
	for _, w := range c.Watch {
		if _, err := netip.ParseAddr(w); err != nil {
			return fmt.Errorf("invalid watch address %q: %w", w, err)
		}
	}
	return nil
}

// WatchAddrs returns the parsed watch addresses. Validate must have succeeded.
func (c *Config) WatchAddrs() []netip.Addr {
	addrs := make([]netip.Addr, 0, len(c.Watch))
	for _, w := range c.Watch {
		if addr, err := netip.ParseAddr(w); err == nil {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
