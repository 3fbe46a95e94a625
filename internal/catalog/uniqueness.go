package catalog

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/database"
)

// ensureUnique checks that no other non-deleted row in scope already uses
// value for column. excludeID skips the row being updated or restored.
func (s *Service) ensureUnique(ctx context.Context, q database.Querier, meta entityMeta, column, value string, scope squirrel.Eq, excludeID string) error {
	where := squirrel.And{
		squirrel.Eq{column: value, "deleted_at": nil},
	}
	if len(scope) > 0 {
		where = append(where, scope)
	}
	if excludeID != "" {
		where = append(where, squirrel.NotEq{"id": excludeID})
	}

	n, err := database.Count(ctx, q, s.qb.Select("COUNT(*)").From(meta.Table).Where(where))
	if err != nil {
		return apperr.Unexpected(err, "failed to check %s uniqueness", meta.Label)
	}
	if n > 0 {
		if len(scope) > 0 {
			return apperr.Conflict("%s %q already exists in this %s", meta.Label, value, scopeLabel(meta))
		}
		if column == "name" || column == meta.Label {
			return apperr.Conflict("%s %q already exists", meta.Label, value)
		}
		return apperr.Conflict("%s with %s %q already exists", meta.Label, column, value)
	}
	return nil
}

func scopeLabel(meta entityMeta) string {
	for parent, rel := range children {
		if rel.table == meta.Table {
			return labels[parent]
		}
	}
	return "scope"
}
