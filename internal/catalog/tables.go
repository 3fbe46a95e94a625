package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/effects"
	"github.com/schemajeli/schemajeli/internal/search"
	"github.com/schemajeli/schemajeli/internal/types"
)

var tableMeta = entityMeta{
	Type:  types.EntityTable,
	Label: "table",
	Table: database.TableTables,
	Columns: []string{
		"id", "database_id", "name", "description", "table_type", "row_count_estimate",
		"status", "created_at", "updated_at", "deleted_at",
	},
	SearchColumns: []string{"name", "description"},
	Sortable: map[string]string{
		"name":             "name",
		"tableType":        "table_type",
		"rowCountEstimate": "row_count_estimate",
		"status":           "status",
		"createdAt":        "created_at",
		"updatedAt":        "updated_at",
	},
	DefaultSort:  "name",
	StatusColumn: "status",
	TypeColumn:   "table_type",
}

func scanTable(row rowScanner) (*types.Table, error) {
	var (
		t       types.Table
		deleted sql.NullTime
	)
	err := row.Scan(&t.ID, &t.DatabaseID, &t.Name, &t.Description, &t.TableType, &t.RowCountEstimate,
		&t.Status, &t.CreatedAt, &t.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.DeletedAt = nullTime(deleted)
	return &t, nil
}

func tableValues(t *types.Table) map[string]any {
	return map[string]any{
		"id":                 t.ID,
		"database_id":        t.DatabaseID,
		"name":               t.Name,
		"description":        t.Description,
		"table_type":         string(t.TableType),
		"row_count_estimate": t.RowCountEstimate,
		"status":             string(t.Status),
		"created_at":         t.CreatedAt,
		"updated_at":         t.UpdatedAt,
		"deleted_at":         timeArg(t.DeletedAt),
	}
}

func tableDocument(t *types.Table) *search.Document {
	return &search.Document{
		EntityType:  types.EntityTable,
		EntityID:    t.ID,
		ParentID:    t.DatabaseID,
		Name:        t.Name,
		Description: t.Description,
		Keywords:    nonEmpty(string(t.TableType)),
		UpdatedAt:   t.UpdatedAt,
	}
}

func (s *Service) GetTable(ctx context.Context, id string, includeDeleted bool) (*types.Table, error) {
	return fetchByID(ctx, s, s.store.DB(), tableMeta, id, includeDeleted, false, scanTable)
}

func (s *Service) ListTables(ctx context.Context, f types.TableFilter) (*types.Page[types.Table], error) {
	where := squirrel.And{}
	if f.DatabaseID != "" {
		where = append(where, squirrel.Eq{"database_id": f.DatabaseID})
	}
	if f.TableType != "" {
		where = append(where, squirrel.Eq{"table_type": string(f.TableType)})
	}
	if f.Status != "" {
		where = append(where, squirrel.Eq{"status": string(f.Status)})
	}
	return listPage(ctx, s, tableMeta, where, f.ListOptions, scanTable)
}

func (s *Service) CreateTable(ctx context.Context, actor types.Actor, in types.CreateTableInput) (*types.Table, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := required("databaseId", in.DatabaseID); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if in.TableType == "" {
		in.TableType = types.TableTypeTable
	}
	if !in.TableType.Valid() {
		return nil, apperr.Validation("invalid tableType %q", in.TableType)
	}
	if in.RowCountEstimate < 0 {
		return nil, apperr.Validation("rowCountEstimate must not be negative")
	}
	status, err := inputStatus(in.Status)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	t := &types.Table{
		ID:               uuid.NewString(),
		DatabaseID:       in.DatabaseID,
		Name:             in.Name,
		Description:      in.Description,
		TableType:        in.TableType,
		RowCountEstimate: in.RowCountEstimate,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if _, err := fetchByID(ctx, s, tx, databaseMeta, t.DatabaseID, false, true, scanDatabase); err != nil {
			return nil, err
		}
		if err := s.ensureUnique(ctx, tx, tableMeta, "name", t.Name, squirrel.Eq{"database_id": t.DatabaseID}, ""); err != nil {
			return nil, err
		}
		if _, err := database.Exec(ctx, tx, s.qb.Insert(tableMeta.Table).SetMap(tableValues(t))); err != nil {
			return nil, storeErr(err, "failed to create table %q", t.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityTable, t.ID, types.ActionCreate, t); err != nil {
			return nil, err
		}
		return s.sideEffects(tableMeta, t.ID, tableDocument(t)), nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTable patches a table. The owning database cannot be changed.
func (s *Service) UpdateTable(ctx context.Context, actor types.Actor, id string, in types.UpdateTableInput) (*types.Table, error) {
	name, err := patchText("name", in.Name, true)
	if err != nil {
		return nil, err
	}
	if in.TableType != nil && !in.TableType.Valid() {
		return nil, apperr.Validation("invalid tableType %q", *in.TableType)
	}
	if in.RowCountEstimate != nil && *in.RowCountEstimate < 0 {
		return nil, apperr.Validation("rowCountEstimate must not be negative")
	}
	if in.Status != nil {
		if _, err := inputStatus(*in.Status); err != nil {
			return nil, err
		}
	}

	var updated *types.Table
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		before, err := fetchByID(ctx, s, tx, tableMeta, id, false, true, scanTable)
		if err != nil {
			return nil, err
		}

		after := *before
		if name != nil && *name != before.Name {
			if err := s.ensureUnique(ctx, tx, tableMeta, "name", *name, squirrel.Eq{"database_id": before.DatabaseID}, id); err != nil {
				return nil, err
			}
			after.Name = *name
		}
		if in.Description != nil {
			after.Description = *in.Description
		}
		if in.TableType != nil {
			after.TableType = *in.TableType
		}
		if in.RowCountEstimate != nil {
			after.RowCountEstimate = *in.RowCountEstimate
		}
		if in.Status != nil && *in.Status != "" {
			after.Status = *in.Status
		}
		after.UpdatedAt = s.timestamp()

		if _, err := database.Exec(ctx, tx, s.qb.Update(tableMeta.Table).
			SetMap(tableValues(&after)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to update table %q", after.Name)
		}
		if err := s.auditUpdate(ctx, tx, actor, types.EntityTable, id, before, &after); err != nil {
			return nil, err
		}
		updated = &after
		return s.sideEffects(tableMeta, id, tableDocument(&after)), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTable soft-deletes a table that has no active elements.
func (s *Service) DeleteTable(ctx context.Context, actor types.Actor, id string) (*types.Table, error) {
	var deleted *types.Table
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		t, err := fetchByID(ctx, s, tx, tableMeta, id, false, true, scanTable)
		if err != nil {
			return nil, err
		}
		if err := s.guardCascade(ctx, tx, tableMeta, t.Name, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		t.DeletedAt = &now
		t.UpdatedAt = now
		t.Status = types.StatusArchived
		if _, err := database.Exec(ctx, tx, s.qb.Update(tableMeta.Table).
			Set("deleted_at", now).
			Set("updated_at", now).
			Set("status", string(types.StatusArchived)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to delete table %q", t.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityTable, id, types.ActionDelete, t); err != nil {
			return nil, err
		}
		deleted = t
		return s.sideEffects(tableMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Service) RestoreTable(ctx context.Context, actor types.Actor, id string) (*types.Table, error) {
	current, err := s.GetTable(ctx, id, true)
	if err != nil {
		return nil, err
	}

	var restored *types.Table
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if _, err := fetchByID(ctx, s, tx, databaseMeta, current.DatabaseID, false, true, scanDatabase); err != nil {
			return nil, err
		}
		t, err := fetchByID(ctx, s, tx, tableMeta, id, true, true, scanTable)
		if err != nil {
			return nil, err
		}
		if t.DeletedAt == nil {
			return nil, apperr.Conflict("table %q is not deleted", t.Name)
		}
		if err := s.ensureUnique(ctx, tx, tableMeta, "name", t.Name, squirrel.Eq{"database_id": t.DatabaseID}, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		t.DeletedAt = nil
		t.UpdatedAt = now
		t.Status = types.StatusActive
		if _, err := database.Exec(ctx, tx, s.qb.Update(tableMeta.Table).
			Set("deleted_at", nil).
			Set("updated_at", now).
			Set("status", string(types.StatusActive)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to restore table %q", t.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityTable, id, types.ActionRestore, t); err != nil {
			return nil, err
		}
		restored = t
		return s.sideEffects(tableMeta, id, tableDocument(t)), nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *Service) TableStats(ctx context.Context) (*types.Stats, error) {
	return s.entityStats(ctx, tableMeta, squirrel.Eq{"status": string(types.StatusActive)})
}

func (s *Service) FindTableByName(ctx context.Context, databaseID, name string) (*types.Table, error) {
	return fetchOne(ctx, s, s.store.DB(), tableMeta, squirrel.Eq{"database_id": databaseID, "name": name}, scanTable)
}
