package catalog

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/types"
)

// Snapshot reads the whole non-deleted catalog as a tree for export.
func (s *Service) Snapshot(ctx context.Context, version string) (*types.CatalogSnapshot, error) {
	servers, err := listAll(ctx, s, serverMeta, nil, "name ASC", scanServer)
	if err != nil {
		return nil, err
	}

	snap := &types.CatalogSnapshot{
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Version:   version,
		Servers:   make([]types.ServerSnapshot, 0, len(servers)),
	}

	for _, srv := range servers {
		databases, err := listAll(ctx, s, databaseMeta, squirrel.Eq{"server_id": srv.ID}, "name ASC", scanDatabase)
		if err != nil {
			return nil, err
		}
		ss := types.ServerSnapshot{Server: srv, Databases: make([]types.DatabaseSnapshot, 0, len(databases))}

		for _, db := range databases {
			tables, err := listAll(ctx, s, tableMeta, squirrel.Eq{"database_id": db.ID}, "name ASC", scanTable)
			if err != nil {
				return nil, err
			}
			ds := types.DatabaseSnapshot{Database: db, Tables: make([]types.TableSnapshot, 0, len(tables))}

			for _, t := range tables {
				elements, err := s.TableElements(ctx, t.ID)
				if err != nil {
					return nil, err
				}
				if elements == nil {
					elements = []types.Element{}
				}
				ds.Tables = append(ds.Tables, types.TableSnapshot{Table: t, Elements: elements})
			}
			ss.Databases = append(ss.Databases, ds)
		}
		snap.Servers = append(snap.Servers, ss)
	}

	if snap.Abbreviations, err = s.AllAbbreviations(ctx); err != nil {
		return nil, err
	}
	if snap.Abbreviations == nil {
		snap.Abbreviations = []types.Abbreviation{}
	}
	return snap, nil
}
