// Package catalog implements the metadata catalog: servers, databases,
// tables, elements, abbreviations and users, with cascade-guarded soft
// delete, dense element positions, scoped name uniqueness and an audit row
// for every mutation.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/cache"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/effects"
	"github.com/schemajeli/schemajeli/internal/logger"
	"github.com/schemajeli/schemajeli/internal/search"
	"github.com/schemajeli/schemajeli/internal/types"
)

type Options struct {
	DefaultLimit int
	MaxLimit     int
	SearchPolicy effects.Policy
	CachePolicy  effects.Policy
}

type Service struct {
	store   *database.Store
	qb      squirrel.StatementBuilderType
	index   search.Indexer
	stats   cache.StatsCache
	effects *effects.Runner
	logger  *logger.Logger
	opts    Options
	now     func() time.Time
}

// NewService wires the catalog to its store. A nil indexer or cache falls
// back to the no-op implementation.
func NewService(store *database.Store, index search.Indexer, stats cache.StatsCache, log *logger.Logger, opts Options) *Service {
	if index == nil {
		index = search.Noop{}
	}
	if stats == nil {
		stats = cache.Noop{}
	}
	if opts.SearchPolicy == "" {
		opts.SearchPolicy = effects.BestEffort
	}
	if opts.CachePolicy == "" {
		opts.CachePolicy = effects.BestEffort
	}
	return &Service{
		store:   store,
		qb:      store.Builder(),
		index:   index,
		stats:   stats,
		effects: effects.NewRunner(log),
		logger:  log,
		opts:    opts,
		now:     time.Now,
	}
}

func (s *Service) Store() *database.Store {
	return s.store
}

type rowScanner interface {
	Scan(dest ...any) error
}

// timestamp returns the current time at the microsecond precision every
// supported store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// mutate runs fn in a transaction. Durable side effects run before commit;
// best-effort ones after it.
func (s *Service) mutate(ctx context.Context, fn func(tx *sql.Tx) ([]effects.Effect, error)) error {
	var pending []effects.Effect
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		effs, err := fn(tx)
		if err != nil {
			return err
		}
		pending = effs
		if err := s.effects.RunDurable(ctx, effs); err != nil {
			return apperr.Unexpected(err, "side effect failed")
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(err, "transaction failed")
	}
	s.effects.RunBestEffort(ctx, pending)
	return nil
}

// sideEffects returns the index and cache effects of one mutation. A nil
// doc removes the entity from the search index.
func (s *Service) sideEffects(meta entityMeta, id string, doc *search.Document) []effects.Effect {
	index := effects.Effect{Name: "search index update", Policy: s.opts.SearchPolicy}
	if doc != nil {
		index.Run = func(ctx context.Context) error { return s.index.Index(ctx, *doc) }
	} else {
		index.Run = func(ctx context.Context) error { return s.index.Delete(ctx, meta.Type, id) }
	}

	invalidate := effects.Effect{
		Name:   "stats cache invalidation",
		Policy: s.opts.CachePolicy,
		Run:    func(ctx context.Context) error { return s.stats.Invalidate(ctx, meta.Table) },
	}

	if meta.Type == types.EntityUser {
		return []effects.Effect{invalidate}
	}
	return []effects.Effect{index, invalidate}
}

// storeErr maps a driver error onto the error taxonomy.
func storeErr(err error, format string, args ...any) error {
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("%s: a record with the same name already exists", fmt.Sprintf(format, args...))
	}
	return apperr.Wrap(err, format, args...)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
