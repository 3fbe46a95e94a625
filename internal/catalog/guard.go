package catalog

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/types"
)

var labels = map[types.EntityType]string{
	types.EntityServer:       "server",
	types.EntityDatabase:     "database",
	types.EntityTable:        "table",
	types.EntityElement:      "element",
	types.EntityAbbreviation: "abbreviation",
	types.EntityUser:         "user",
}

type childRelation struct {
	table    string
	parentFK string
	label    string
}

// Parents whose soft delete is blocked by active children.
var children = map[types.EntityType]childRelation{
	types.EntityServer:   {table: database.TableDatabases, parentFK: "server_id", label: "database"},
	types.EntityDatabase: {table: database.TableTables, parentFK: "database_id", label: "table"},
	types.EntityTable:    {table: database.TableElements, parentFK: "table_id", label: "element"},
}

func (s *Service) countActiveChildren(ctx context.Context, q database.Querier, parent types.EntityType, id string) (int, error) {
	rel, ok := children[parent]
	if !ok {
		return 0, nil
	}
	return database.Count(ctx, q, s.qb.Select("COUNT(*)").
		From(rel.table).
		Where(squirrel.Eq{rel.parentFK: id, "deleted_at": nil}))
}

// guardCascade refuses to delete a parent that still has active children.
// The caller must hold the parent row lock so no child can be added between
// the count and the delete.
func (s *Service) guardCascade(ctx context.Context, q database.Querier, meta entityMeta, name, id string) error {
	n, err := s.countActiveChildren(ctx, q, meta.Type, id)
	if err != nil {
		return apperr.Unexpected(err, "failed to count children of %s", meta.Label)
	}
	if n > 0 {
		return apperr.Conflict("cannot delete %s %q: it has %d active %s(s)", meta.Label, name, n, children[meta.Type].label)
	}
	return nil
}
