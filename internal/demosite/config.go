package demosite

import "time"

// defaultSlowDelay is just past the crawl provider's default slow threshold.
const defaultSlowDelay = 3500 * time.Millisecond

// Config holds configuration for the demo site.
type Config struct {
	// Addr is the listen address.
	Addr string

	// InitialVersion is the starting version for all pages.
	InitialVersion int

	// SlowDelay is how long pages marked slow wait before answering.
	SlowDelay time.Duration
}

// DefaultConfig serves the defective pages on :9999.
func DefaultConfig() Config {
	return Config{
		Addr:           ":9999",
		InitialVersion: Before,
		SlowDelay:      defaultSlowDelay,
	}
}
