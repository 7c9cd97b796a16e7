package audit

import (
	"fmt"
	"time"
)

type Config struct {
	PollInterval    time.Duration  `yaml:"poll_interval"`
	MaxPollAttempts int            `yaml:"max_poll_attempts"`
	FindingsLimit   int            `yaml:"findings_limit"`
	ChecklistLimit  int            `yaml:"checklist_limit"`
	DefaultPages    int            `yaml:"default_pages"`
	FinalizeLease   time.Duration  `yaml:"finalize_lease"`
	Priorities      map[string]int `yaml:"priorities"`
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    30 * time.Second,
		MaxPollAttempts: 60,
		FindingsLimit:   100,
		ChecklistLimit:  50,
		DefaultPages:    200,
		FinalizeLease:   10 * time.Minute,
	}
}

// CrawlDeadline is how long a crawl may run before it is declared timed out.
func (c Config) CrawlDeadline() time.Duration {
	return c.PollInterval * time.Duration(c.MaxPollAttempts)
}

// Poller builds the batch poller for this config.
func (c Config) Poller() Poller {
	return Poller{Interval: c.PollInterval, MaxAttempts: c.MaxPollAttempts}
}

// Templates returns the default templates with configured priorities applied.
func (c Config) Templates() (Templates, error) {
	return DefaultTemplates().WithPriorities(c.Priorities)
}

func (c Config) Validate() error {
	switch {
	case c.PollInterval < 0:
		return fmt.Errorf("audit.poll_interval must not be negative")
	case c.MaxPollAttempts < 1:
		return fmt.Errorf("audit.max_poll_attempts must be at least 1")
	case c.FindingsLimit < 1:
		return fmt.Errorf("audit.findings_limit must be at least 1")
	case c.ChecklistLimit < 1:
		return fmt.Errorf("audit.checklist_limit must be at least 1")
	case c.DefaultPages < 1:
		return fmt.Errorf("audit.default_pages must be at least 1")
	case c.FinalizeLease <= 0:
		return fmt.Errorf("audit.finalize_lease must be positive")
	}
	_, err := c.Templates()
	return err
}
