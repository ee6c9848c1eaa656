package websocket

import "golang.org/x/time/rate"

// RateLimitConfig throttles outbound position frames on the client.
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames may be sent per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration.
// Allows 60 frames per second, the server tick rate, with a burst of 2.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 60,
		Burst:             2,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// NewLimiter returns a token bucket for c, or nil when limiting is off.
func (c *RateLimitConfig) NewLimiter() *rate.Limiter {
	if c == nil || !c.Enabled {
		return nil
	}
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(c.MessagesPerSecond, burst)
}
