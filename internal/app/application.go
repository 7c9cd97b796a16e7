package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/raysh454/rankdesk/internal/accounts"
	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/auth/supabase"
	"github.com/raysh454/rankdesk/internal/competitor"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/metrics"
	"github.com/raysh454/rankdesk/internal/provider"
	"github.com/raysh454/rankdesk/internal/provider/crawl"
	"github.com/raysh454/rankdesk/internal/provider/dataforseo"
	"github.com/raysh454/rankdesk/internal/server"
	"github.com/raysh454/rankdesk/internal/store"
	"github.com/raysh454/rankdesk/internal/store/postgres"
	"github.com/raysh454/rankdesk/internal/store/sqlite"
	"github.com/raysh454/rankdesk/internal/webclient"
)

// Application holds the components shared by the commands. Build only
// what a command needs: Store for repairs, NewRunner for batch audits,
// NewServer for the API.
type Application struct {
	Config  *Config
	Logger  logging.Logger
	Metrics *metrics.Metrics

	store    store.Store
	wc       webclient.WebClient
	provider provider.Provider
	closers  []io.Closer
}

func New(cfg *Config, logger logging.Logger) *Application {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("rankdesk")
	}
	return &Application{Config: cfg, Logger: logger, Metrics: metrics.New()}
}

// Store opens the configured store once. Postgres schemas are migrated on
// open.
func (a *Application) Store(ctx context.Context) (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	var st store.Store
	switch a.Config.Store.Driver {
	case StorePostgres:
		pg, err := postgres.Open(a.Config.Store.DatabaseURL, a.Logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		st = pg
	case StoreSQLite:
		sq, err := sqlite.Open(a.Config.Store.SQLitePath, a.Logger)
		if err != nil {
			return nil, err
		}
		st = sq
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
	a.Logger.Info("store opened", logging.F("driver", a.Config.Store.Driver))
	a.store = st
	a.closers = append(a.closers, st)
	return st, nil
}

func (a *Application) webClient() (webclient.WebClient, error) {
	if a.wc != nil {
		return a.wc, nil
	}
	wc, err := webclient.New(a.Config.WebClient, a.Logger)
	if err != nil {
		return nil, err
	}
	a.wc = wc
	a.closers = append(a.closers, wc)
	return wc, nil
}

// Provider builds the audit provider named by name, or the configured one
// when name is empty.
func (a *Application) Provider(name string) (provider.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	if name == "" {
		name = a.Config.Provider
	}
	wc, err := a.webClient()
	if err != nil {
		return nil, err
	}
	switch name {
	case ProviderDataForSEO:
		c, err := dataforseo.New(a.Config.DataForSEO, wc, a.Logger)
		if err != nil {
			return nil, err
		}
		a.provider = c
	case ProviderCrawl:
		p := crawl.New(a.Config.Crawl, wc, a.Logger)
		a.closers = append(a.closers, p)
		a.provider = p
	default:
		return nil, fmt.Errorf("unknown audit provider %q", name)
	}
	return a.provider, nil
}

func (a *Application) synthesizer(st audit.TaskCreator) (*audit.Synthesizer, error) {
	tpl, err := a.Config.Audit.Templates()
	if err != nil {
		return nil, err
	}
	return audit.NewSynthesizer(tpl, a.Config.Audit.ChecklistLimit, st, a.Logger, a.Metrics), nil
}

// NewRunner builds the batch audit runner. When useStore is false results
// are never persisted.
func (a *Application) NewRunner(ctx context.Context, providerName string, useStore bool) (*audit.Runner, error) {
	p, err := a.Provider(providerName)
	if err != nil {
		return nil, err
	}
	var st store.Store
	var tasks audit.TaskCreator
	if useStore {
		if st, err = a.Store(ctx); err != nil {
			return nil, err
		}
		tasks = st
	}
	synth, err := a.synthesizer(tasks)
	if err != nil {
		return nil, err
	}
	return audit.NewRunner(a.Config.Audit, p, synth, st, a.Logger, a.Metrics), nil
}

// authenticator is GoTrue when Supabase is configured, otherwise an
// in-memory account list for local development.
func (a *Application) authenticator() (auth.Authenticator, error) {
	if a.Config.Supabase.URL == "" {
		a.Logger.Warn("SUPABASE_URL not set, accounts are kept in memory")
		return auth.NewStaticAuthenticator(), nil
	}
	wc, err := a.webClient()
	if err != nil {
		return nil, err
	}
	return supabase.New(a.Config.Supabase.URL, a.Config.Supabase.APIKey(), wc, a.Logger)
}

// NewServer wires the API over the configured store and provider.
func (a *Application) NewServer(ctx context.Context) (*server.Server, error) {
	st, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.Provider("")
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManager(a.Config.Session.Secret, a.Config.Session.TTL)
	if err != nil {
		return nil, err
	}
	authn, err := a.authenticator()
	if err != nil {
		return nil, err
	}
	synth, err := a.synthesizer(st)
	if err != nil {
		return nil, err
	}

	var analyzer *competitor.Analyzer
	if ro, ok := p.(provider.RankOverview); ok {
		analyzer = competitor.New(st, ro, a.Logger)
	} else {
		a.Logger.Warn("audit provider has no rank overview, competitor analysis disabled",
			logging.F("provider", a.Config.Provider))
	}

	return server.New(a.Config.Server, server.Deps{
		Store:       st,
		Accounts:    accounts.New(authn, st, tokens, a.Logger),
		Tokens:      tokens,
		Audits:      audit.NewService(a.Config.Audit, p, synth, st, a.Logger, a.Metrics),
		Competitors: analyzer,
		Metrics:     a.Metrics,
		Logger:      a.Logger,
	})
}

// Close releases everything opened, newest first.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
