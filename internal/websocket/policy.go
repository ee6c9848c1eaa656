package websocket

import (
	"math"
	"time"
)

// ReconnectPolicy computes the wait before each automatic reconnect attempt.
type ReconnectPolicy struct {
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// GrowthFactor multiplies the delay on every further attempt.
	GrowthFactor float64
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// MaxAttempts is how many automatic retries are made before giving up.
	MaxAttempts int
}

// DefaultReconnectPolicy returns the stock policy: 1s doubling up to 30s,
// at most 5 retries.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:    time.Second,
		GrowthFactor: 2,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  5,
	}
}

// Delay returns min(BaseDelay * GrowthFactor^attempt, MaxDelay).
// Negative attempts are treated as zero.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	growth := p.GrowthFactor
	if growth < 1 {
		growth = 1
	}

	d := float64(p.BaseDelay) * math.Pow(growth, float64(attempt))
	if p.MaxDelay > 0 && (math.IsInf(d, 1) || d > float64(p.MaxDelay)) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// normalized returns the default policy for the zero value and otherwise
// fills unset durations and growth from it.
func (p ReconnectPolicy) normalized() ReconnectPolicy {
	def := DefaultReconnectPolicy()
	if p == (ReconnectPolicy{}) {
		return def
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.GrowthFactor < 1 {
		p.GrowthFactor = def.GrowthFactor
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}
