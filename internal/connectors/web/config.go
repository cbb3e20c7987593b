package web

import "time"

// DefaultUserAgent mimics a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Config holds fetcher settings.
type Config struct {
	// Timeout bounds a single request including reading the body.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodyBytes caps the response body size.
	MaxBodyBytes int64

	// RequestsPerSecond throttles requests to a single host. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the number of requests a host may receive back to back.
	Burst int
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		UserAgent:         DefaultUserAgent,
		MaxBodyBytes:      20 << 20,
		RequestsPerSecond: 2,
		Burst:             2,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	return c
}
