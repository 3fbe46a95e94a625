package cmd

import (
	"context"
	"fmt"

	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/cache"
	"github.com/schemajeli/schemajeli/internal/catalog"
	"github.com/schemajeli/schemajeli/internal/config"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/effects"
	"github.com/schemajeli/schemajeli/internal/logger"
	"github.com/schemajeli/schemajeli/internal/search"
)

// app holds everything a command needs once the configuration is
// loaded. close releases what openRuntime acquired, in reverse order.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *database.Store
	catalog *catalog.Service
	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, service string) *logger.Logger {
	log := logger.New(service, logger.ParseLevel(cfg.Log.Level))
	log.SetColor(cfg.Log.Color)
	return log
}

// openStore connects to the catalog database without touching search or the
// cache. migrate and status need nothing more.
func openStore(ctx context.Context, cfg *config.Config) (*database.Store, error) {
	dbURL, err := cfg.GetDatabaseURL()
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, cfg.Provider(), dbURL, database.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
}

// openRuntime wires the store, the optional search index and stats cache, and
// the catalog service. A search or cache backend that cannot be reached is
// fatal only under the durable policy.
func openRuntime(ctx context.Context, service string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &app{cfg: cfg, log: newLogger(cfg, service)}

	rt.store, err = openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.store.Close)

	if _, err := rt.store.Migrate(ctx); err != nil {
		rt.close()
		return nil, err
	}

	searchPolicy, err := effects.ParsePolicy(cfg.Search.Policy)
	if err != nil {
		rt.close()
		return nil, err
	}
	cachePolicy, err := effects.ParsePolicy(cfg.Cache.Policy)
	if err != nil {
		rt.close()
		return nil, err
	}

	var index search.Indexer
	if cfg.Search.Enabled {
		es, err := search.NewElasticsearch(ctx, cfg.Search.Addresses, cfg.Search.Index)
		switch {
		case err == nil:
			index = es
		case searchPolicy == effects.Durable:
			rt.close()
			return nil, err
		default:
			rt.log.Warnf("Search index unavailable, continuing without it: %v", err)
		}
	}

	var stats cache.StatsCache
	if cfg.Cache.Enabled {
		redis, err := cache.NewRedis(ctx, cfg.Cache)
		switch {
		case err == nil:
			stats = redis
			rt.closers = append(rt.closers, redis.Close)
		case cachePolicy == effects.Durable:
			rt.close()
			return nil, err
		default:
			rt.log.Warnf("Stats cache unavailable, continuing without it: %v", err)
		}
	}

	rt.catalog = catalog.NewService(rt.store, index, stats, rt.log, catalog.Options{
		DefaultLimit: cfg.Pagination.DefaultLimit,
		MaxLimit:     cfg.Pagination.MaxLimit,
		SearchPolicy: searchPolicy,
		CachePolicy:  cachePolicy,
	})
	return rt, nil
}

func (rt *app) authenticator() *auth.Authenticator {
	var external auth.PasswordVerifier
	if rt.cfg.Auth.LDAP.Enabled {
		external = auth.NewLDAPVerifier(rt.cfg.Auth.LDAP, rt.cfg.GetLDAPBindPassword())
	}
	sessions := auth.NewSessions(rt.store, rt.cfg.Auth.SessionTTL, rt.log)
	return auth.NewAuthenticator(rt.catalog, sessions, external, rt.log)
}

func (rt *app) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && rt.log != nil {
			rt.log.Warnf("Shutdown: %v", err)
		}
	}
}
