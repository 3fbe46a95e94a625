package catalog

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/types"
)

// entityStats counts one entity table, serving from the stats cache when it
// holds a fresh value. Cache failures only cost a recount.
func (s *Service) entityStats(ctx context.Context, meta entityMeta, activeWhere squirrel.Sqlizer) (*types.Stats, error) {
	if cached, ok, err := s.stats.Get(ctx, meta.Table); err != nil {
		s.logger.Warnf("Stats cache read for %s failed: %v", meta.Table, err)
	} else if ok {
		return cached, nil
	}

	db := s.store.DB()
	stats := &types.Stats{}

	var err error
	if stats.Total, err = database.Count(ctx, db, s.qb.Select("COUNT(*)").From(meta.Table)); err != nil {
		return nil, apperr.Unexpected(err, "failed to count %ss", meta.Label)
	}
	if stats.Deleted, err = database.Count(ctx, db, s.qb.Select("COUNT(*)").
		From(meta.Table).
		Where(squirrel.NotEq{"deleted_at": nil})); err != nil {
		return nil, apperr.Unexpected(err, "failed to count deleted %ss", meta.Label)
	}

	if activeWhere == nil {
		stats.Active = stats.Total - stats.Deleted
	} else if stats.Active, err = database.Count(ctx, db, s.qb.Select("COUNT(*)").
		From(meta.Table).
		Where(squirrel.Eq{"deleted_at": nil}).
		Where(activeWhere)); err != nil {
		return nil, apperr.Unexpected(err, "failed to count active %ss", meta.Label)
	}

	if meta.StatusColumn != "" {
		if stats.ByStatus, err = s.groupCounts(ctx, meta, meta.StatusColumn); err != nil {
			return nil, err
		}
	}
	if meta.TypeColumn != "" {
		if stats.ByType, err = s.groupCounts(ctx, meta, meta.TypeColumn); err != nil {
			return nil, err
		}
	}

	if err := s.stats.Set(ctx, meta.Table, stats); err != nil {
		s.logger.Warnf("Stats cache write for %s failed: %v", meta.Table, err)
	}
	return stats, nil
}

// groupCounts counts non-deleted rows per distinct value of column.
func (s *Service) groupCounts(ctx context.Context, meta entityMeta, column string) (map[string]int, error) {
	rows, err := database.Query(ctx, s.store.DB(), s.qb.Select(column, "COUNT(*)").
		From(meta.Table).
		Where(squirrel.Eq{"deleted_at": nil}).
		GroupBy(column))
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to group %ss by %s", meta.Label, column)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, apperr.Unexpected(err, "failed to read %s counts", meta.Label)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err, "failed to group %ss by %s", meta.Label, column)
	}
	return counts, nil
}
