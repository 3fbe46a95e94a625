package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/types"
)

// entityMeta describes how an entity is stored and queried.
type entityMeta struct {
	Type          types.EntityType
	Label         string
	Table         string
	Columns       []string
	SearchColumns []string
	Sortable      map[string]string
	DefaultSort   string
	StatusColumn  string
	TypeColumn    string
}

func (m entityMeta) orderBy(opts types.ListOptions) (string, error) {
	column := m.DefaultSort
	if opts.SortBy != "" {
		c, ok := m.Sortable[opts.SortBy]
		if !ok {
			return "", apperr.Validation("cannot sort %ss by %q", m.Label, opts.SortBy)
		}
		column = c
	}
	dir := "ASC"
	if opts.SortOrder == types.SortDesc {
		dir = "DESC"
	}
	return column + " " + dir, nil
}

// searchClause matches q as a case-insensitive substring of any column.
// LIKE wildcards in q are not escaped.
func searchClause(columns []string, q string) squirrel.Or {
	pattern := "%" + strings.ToLower(q) + "%"
	or := make(squirrel.Or, 0, len(columns))
	for _, c := range columns {
		or = append(or, squirrel.Expr("LOWER("+c+") LIKE ?", pattern))
	}
	return or
}

// fetchByID loads one row by id. Deleted rows are hidden unless
// includeDeleted is set; lock holds the row until the transaction ends.
func fetchByID[T any](ctx context.Context, s *Service, q database.Querier, meta entityMeta, id string, includeDeleted, lock bool, scan func(rowScanner) (*T, error)) (*T, error) {
	if !validID(id) {
		return nil, apperr.NotFound("%s %s not found", meta.Label, id)
	}

	b := s.qb.Select(meta.Columns...).From(meta.Table).Where(squirrel.Eq{"id": id})
	if !includeDeleted {
		b = b.Where(squirrel.Eq{"deleted_at": nil})
	}
	if lock {
		if suffix := s.store.Dialect().LockSuffix(); suffix != "" {
			b = b.Suffix(suffix)
		}
	}

	row, err := database.QueryRow(ctx, q, b)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to load %s", meta.Label)
	}

	item, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("%s %s not found", meta.Label, id)
		}
		return nil, apperr.Unexpected(err, "failed to load %s", meta.Label)
	}
	return item, nil
}

// fetchOne loads the first row matching where among non-deleted rows, or nil.
func fetchOne[T any](ctx context.Context, s *Service, q database.Querier, meta entityMeta, where squirrel.Sqlizer, scan func(rowScanner) (*T, error)) (*T, error) {
	b := s.qb.Select(meta.Columns...).From(meta.Table).
		Where(where).
		Where(squirrel.Eq{"deleted_at": nil}).
		Limit(1)

	row, err := database.QueryRow(ctx, q, b)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to load %s", meta.Label)
	}
	item, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Unexpected(err, "failed to load %s", meta.Label)
	}
	return item, nil
}

// listPage runs a filtered, searched, sorted and paginated listing.
func listPage[T any](ctx context.Context, s *Service, meta entityMeta, where squirrel.And, opts types.ListOptions, scan func(rowScanner) (*T, error)) (*types.Page[T], error) {
	opts.Normalize(s.opts.DefaultLimit, s.opts.MaxLimit)

	if !opts.IncludeDeleted {
		where = append(where, squirrel.Eq{"deleted_at": nil})
	}
	if q := strings.TrimSpace(opts.Search); q != "" && len(meta.SearchColumns) > 0 {
		where = append(where, searchClause(meta.SearchColumns, q))
	}

	orderBy, err := meta.orderBy(opts)
	if err != nil {
		return nil, err
	}

	total, err := database.Count(ctx, s.store.DB(), s.qb.Select("COUNT(*)").From(meta.Table).Where(where))
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to count %ss", meta.Label)
	}

	rows, err := database.Query(ctx, s.store.DB(), s.qb.Select(meta.Columns...).
		From(meta.Table).
		Where(where).
		OrderBy(orderBy, "id ASC").
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset())))
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list %ss", meta.Label)
	}
	defer rows.Close()

	items := make([]T, 0, opts.Limit)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, apperr.Unexpected(err, "failed to read %s", meta.Label)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err, "failed to list %ss", meta.Label)
	}

	return &types.Page[T]{
		Items:      items,
		Pagination: types.NewPagination(opts.Page, opts.Limit, total),
	}, nil
}

// listAll returns every non-deleted row matching where, in order.
func listAll[T any](ctx context.Context, s *Service, meta entityMeta, where squirrel.Sqlizer, orderBy string, scan func(rowScanner) (*T, error)) ([]T, error) {
	b := s.qb.Select(meta.Columns...).From(meta.Table).
		Where(squirrel.Eq{"deleted_at": nil}).
		OrderBy(orderBy, "id ASC")
	if where != nil {
		b = b.Where(where)
	}

	rows, err := database.Query(ctx, s.store.DB(), b)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list %ss", meta.Label)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, apperr.Unexpected(err, "failed to read %s", meta.Label)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err, "failed to list %ss", meta.Label)
	}
	return items, nil
}
