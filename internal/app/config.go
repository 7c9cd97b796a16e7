package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/provider/crawl"
	"github.com/raysh454/rankdesk/internal/provider/dataforseo"
	"github.com/raysh454/rankdesk/internal/server"
	"github.com/raysh454/rankdesk/internal/webclient"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	ProviderDataForSEO = "dataforseo"
	ProviderCrawl      = "crawl"
)

// Config is the runtime configuration shared by every command.
type Config struct {
	Log        LogConfig         `yaml:"log"`
	Server     server.Config     `yaml:"server"`
	Store      StoreConfig       `yaml:"store"`
	Supabase   SupabaseConfig    `yaml:"supabase"`
	Session    SessionConfig     `yaml:"session"`
	Provider   string            `yaml:"provider"`
	DataForSEO dataforseo.Config `yaml:"dataforseo"`
	Crawl      crawl.Config      `yaml:"crawl"`
	WebClient  webclient.Config  `yaml:"webclient"`
	Audit      audit.Config      `yaml:"audit"`
}

type LogConfig struct {
	// Format is "json" (zap) or "text" (the stdout logger).
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"-"`
}

// SupabaseConfig enables the GoTrue authenticator when URL is set.
type SupabaseConfig struct {
	URL            string `yaml:"url"`
	Key            string `yaml:"-"`
	ServiceRoleKey string `yaml:"-"`
}

// APIKey is the anon key, falling back to the service role key.
func (c SupabaseConfig) APIKey() string {
	if c.Key != "" {
		return c.Key
	}
	return c.ServiceRoleKey
}

type SessionConfig struct {
	Secret string        `yaml:"-"`
	TTL    time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() *Config {
	return &Config{
		Log:        LogConfig{Format: "json", Level: "info"},
		Server:     server.DefaultConfig(),
		Store:      StoreConfig{Driver: StoreSQLite, SQLitePath: "rankdesk.db"},
		Session:    SessionConfig{TTL: 24 * time.Hour},
		Provider:   ProviderDataForSEO,
		DataForSEO: dataforseo.DefaultConfig(),
		Crawl:      crawl.DefaultConfig(),
		WebClient:  webclient.DefaultConfig(),
		Audit:      audit.DefaultConfig(),
	}
}

// Load reads .env files, then the optional YAML file at path over the
// defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// loadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// Missing files are ignored and already set variables win.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Empty variables are
// ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")
	set(&c.Store.Driver, "STORE_DRIVER")
	set(&c.Store.SQLitePath, "SQLITE_PATH")
	set(&c.Store.DatabaseURL, "DATABASE_URL")
	set(&c.Supabase.URL, "SUPABASE_URL")
	set(&c.Supabase.Key, "SUPABASE_KEY")
	set(&c.Supabase.ServiceRoleKey, "SUPABASE_SERVICE_ROLE_KEY")
	set(&c.Session.Secret, "SESSION_SECRET", "FLASK_SECRET_KEY")
	set(&c.Provider, "AUDIT_PROVIDER")
	set(&c.DataForSEO.Login, "DATAFORSEO_LOGIN")
	set(&c.DataForSEO.Password, "DATAFORSEO_PASSWORD")
	set(&c.Server.AllowOrigin, "CORS_ORIGIN")
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		c.Server.ListenAddr = ":" + port
	}
	if c.Store.Driver == StoreSQLite && c.Store.DatabaseURL != "" && getenv("STORE_DRIVER") == "" {
		c.Store.Driver = StorePostgres
	}
}

// Validate checks the settings every command needs. Credentials needed only
// by serve are checked by ValidateServe.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Provider {
	case ProviderDataForSEO:
		if c.DataForSEO.Login == "" || c.DataForSEO.Password == "" {
			errs = append(errs, errors.New("DATAFORSEO_LOGIN and DATAFORSEO_PASSWORD are required"))
		}
	case ProviderCrawl:
	default:
		errs = append(errs, fmt.Errorf("unknown audit provider %q", c.Provider))
	}
	if err := c.Audit.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateServe additionally requires a session secret.
func (c *Config) ValidateServe() error {
	err := c.Validate()
	if c.Session.Secret == "" {
		err = errors.Join(err, errors.New("SESSION_SECRET is required"))
	}
	return err
}
