package webclient

import "time"

// Config controls outbound HTTP behaviour.
type Config struct {
	// Timeout bounds a whole request including the body read. Zero means 30s.
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent when the request carries none.
	UserAgent string `yaml:"user_agent"`

	// MaxBodyBytes truncates larger bodies. Zero means unlimited.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

const defaultTimeout = 30 * time.Second

func DefaultConfig() Config {
	return Config{
		Timeout:   defaultTimeout,
		UserAgent: "rankdesk/1.0 (+https://github.com/raysh454/rankdesk)",
	}
}
