package sender

import "time"

const (
	defaultRetries   = 3
	defaultBaseDelay = time.Second
)

// ProcessorConfig tunes delivery to Telegram.
type ProcessorConfig struct {
	// Retries is the number of attempts per request; zero means the default.
	Retries int
	// RatePerSecond caps outgoing requests; zero disables the limit.
	RatePerSecond float64
	// BaseDelay is the pause before the second attempt, doubled after each failure.
	BaseDelay time.Duration
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.Retries <= 0 {
		c.Retries = defaultRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	return c
}
