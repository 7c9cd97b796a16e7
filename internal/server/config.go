package server

import (
	"time"

	"github.com/raysh454/rankdesk/internal/accounts"
	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/competitor"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/metrics"
	"github.com/raysh454/rankdesk/internal/store"
)

type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":3000".
	ListenAddr string `yaml:"listen_addr"`

	// AllowOrigin is sent as Access-Control-Allow-Origin. Empty means "*".
	AllowOrigin string `yaml:"allow_origin"`

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool `yaml:"secure_cookies"`

	// WatchInterval is how often the audit websocket re-checks a running
	// audit.
	WatchInterval time.Duration `yaml:"watch_interval"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":3000",
		WatchInterval: 15 * time.Second,
	}
}

// Deps are the services the API delegates to.
type Deps struct {
	Store       store.Store
	Accounts    *accounts.Service
	Tokens      *auth.TokenManager
	Audits      *audit.Service
	Competitors *competitor.Analyzer
	Metrics     *metrics.Metrics
	Logger      logging.Logger
}
