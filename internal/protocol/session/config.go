package session

import (
	"math/rand"
	"time"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines link liveness defaults.
type Config struct {
	// HandshakeInterval is the wait between handshake attempts while
	// disconnected.
	HandshakeInterval time.Duration
	// ErrorBudget is the number of consecutive receive failures tolerated
	// while connected.
	ErrorBudget int
	// Backoff shapes the handshake retry delay. The default is a fixed
	// interval: a peripheral can be plugged in at any moment and a SYN costs
	// three bytes.
	Backoff BackoffConfig
}

const (
	DefaultHandshakeInterval = 5 * time.Second
	DefaultErrorBudget       = 5
)

func DefaultConfig() Config {
	return Config{
		HandshakeInterval: DefaultHandshakeInterval,
		ErrorBudget:       DefaultErrorBudget,
		Backoff: BackoffConfig{
			InitialDelay: DefaultHandshakeInterval,
			Multiplier:   1.0,
			MaxDelay:     DefaultHandshakeInterval,
			Jitter:       false,
		},
	}
}

// WithDefaults fills unset fields and keeps the backoff anchored on the
// handshake interval.
func (c Config) WithDefaults() Config {
	if c.HandshakeInterval <= 0 {
		c.HandshakeInterval = DefaultHandshakeInterval
	}
	if c.ErrorBudget <= 0 {
		c.ErrorBudget = DefaultErrorBudget
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = c.HandshakeInterval
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = 1.0
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = c.Backoff.InitialDelay
	}
	return c
}

// RetryDelay is the wait before handshake attempt N+1 after N failures. rng
// feeds jitter and may be nil.
func (c Config) RetryDelay(attempt int, rng *rand.Rand) time.Duration {
	return NextBackoffDelay(c.WithDefaults().Backoff, attempt, rng)
}
