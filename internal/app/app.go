// Package app builds the long-lived collaborators from configuration and
// hands out per-run orchestrators.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mohammad-safakhou/conflictcast/config"
	"github.com/mohammad-safakhou/conflictcast/internal/agent"
	"github.com/mohammad-safakhou/conflictcast/internal/logging"
	"github.com/mohammad-safakhou/conflictcast/internal/metrics"
	"github.com/mohammad-safakhou/conflictcast/internal/orchestrator"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
	"github.com/mohammad-safakhou/conflictcast/internal/roles"
	"github.com/mohammad-safakhou/conflictcast/internal/server"
	"github.com/mohammad-safakhou/conflictcast/internal/store"
	"github.com/mohammad-safakhou/conflictcast/internal/telemetry"
	"github.com/mohammad-safakhou/conflictcast/provider"
	"github.com/mohammad-safakhou/conflictcast/session"
	"github.com/mohammad-safakhou/conflictcast/session/inmemory"
	redis_session "github.com/mohammad-safakhou/conflictcast/session/redis"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch"
	"github.com/mohammad-safakhou/conflictcast/tools/web_search"
	"go.uber.org/zap"
)

const ServiceName = "conflictcast"

// Version is stamped at build time.
var Version = "dev"

// App holds the process-wide collaborators.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Sessions  session.Store
	Registry  *provider.Registry
	Runner    *agent.Runner
	Archive   *store.Store
	telemetry *telemetry.Telemetry
}

// Options tune New.
type Options struct {
	// TraceOutput receives spans when telemetry.stdout is set.
	TraceOutput io.Writer
	// SkipArchive leaves the Postgres archive closed even when configured.
	SkipArchive bool
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.Options{
		ServiceName:    ServiceName,
		ServiceVersion: Version,
		Stdout:         opts.TraceOutput,
	})
	if err != nil {
		return nil, err
	}
	a.telemetry = tel

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Sessions = sessions

	if cfg.Reports.Archive && !opts.SkipArchive {
		st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("open report archive: %w", err)
		}
		a.Archive = st
	}

	a.Registry = provider.NewRegistry(cfg.LLM.Providers)
	a.Runner = agent.NewRunner(agent.RouteResolver{Registry: a.Registry},
		agent.WithMaxTurns(cfg.Agents.MaxTurns),
		agent.WithLogger(logger.Named("agent")),
		agent.WithMetrics(a.Metrics),
	)
	fields := []zap.Field{
		zap.String("session_store", cfg.Session.Store),
		zap.String("search_provider", cfg.Search.Provider),
		logging.Secret("search_api_key", cfg.Search.APIKey()),
		zap.Bool("archive", a.Archive != nil),
	}
	for name, p := range cfg.LLM.Providers {
		fields = append(fields, logging.Secret(name+"_api_key", p.APIKey))
	}
	logger.Debug("app ready", fields...)
	return a, nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Store {
	case "redis":
		r := cfg.Storage.Redis
		client, err := redis_session.Conn(ctx, r.Addr(), r.Password, r.DB, r.Timeout)
		if err != nil {
			return nil, err
		}
		return redis_session.NewRedisSessionStore(client), nil
	case "inmemory", "":
		return inmemory.NewInMemorySessionStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// NewTeam builds the agents of one run. A missing search key fails here,
// when a run first needs the searcher.
func (a *App) NewTeam() (*roles.Team, error) {
	sc := a.Config.Search
	searcher, err := web_search.NewWebSearcher(web_search.Provider(sc.Provider), sc.APIKey(), sc.Timeout)
	if err != nil {
		return nil, fmt.Errorf("search provider %s: %w", sc.Provider, err)
	}
	searcher = web_search.WithRateLimit(searcher, sc.RatePerSec)

	fc := a.Config.Fetch
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(fc.Type), fc.Timeout, fc.MaxChars)
	if err != nil {
		return nil, fmt.Errorf("fetcher %s: %w", fc.Type, err)
	}

	return roles.NewTeam(roles.Deps{
		Runner:      a.Runner,
		Searcher:    searcher,
		Fetcher:     fetcher,
		FetchPolicy: fc.Policy,
		Routing:     a.Config.LLM.Routing,
		MaxResults:  sc.MaxResults,
		Logger:      a.Logger,
	})
}

// NewOrchestrator binds a fresh team to sess.
func (a *App) NewOrchestrator(sess session.Session, console *orchestrator.Console) (*orchestrator.Orchestrator, error) {
	team, err := a.NewTeam()
	if err != nil {
		return nil, err
	}
	opts := orchestrator.Options{
		Runner:     a.Runner,
		Team:       team,
		Session:    sess,
		ReportsDir: a.Config.Reports.Dir,
		Console:    console,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}
	if a.Archive != nil {
		opts.Archive = a.Archive
	}
	o, err := orchestrator.New(opts)
	if err != nil {
		_ = team.Close()
		return nil, err
	}
	return o, nil
}

// Pool serves conversational turns for the HTTP API.
func (a *App) Pool() *orchestrator.Pool {
	return orchestrator.NewPool(a.Sessions, a.Config.Session.TTL, func(_ context.Context, sess session.Session) (*orchestrator.Orchestrator, error) {
		return a.NewOrchestrator(sess, nil)
	}, a.Logger)
}

// Catalog reads the archive when enabled, otherwise the report directory.
func (a *App) Catalog() server.Catalog {
	if a.Archive != nil {
		return a.Archive
	}
	return report.DirCatalog{Dir: a.Config.Reports.Dir}
}

// Close releases every collaborator, reporting the first failure.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Sessions != nil {
		errs = append(errs, a.Sessions.Close())
	}
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
