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

var databaseMeta = entityMeta{
	Type:  types.EntityDatabase,
	Label: "database",
	Table: database.TableDatabases,
	Columns: []string{
		"id", "server_id", "name", "description", "purpose",
		"status", "created_at", "updated_at", "deleted_at",
	},
	SearchColumns: []string{"name", "description", "purpose"},
	Sortable: map[string]string{
		"name":      "name",
		"status":    "status",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	DefaultSort:  "name",
	StatusColumn: "status",
}

func scanDatabase(row rowScanner) (*types.Database, error) {
	var (
		db      types.Database
		deleted sql.NullTime
	)
	err := row.Scan(&db.ID, &db.ServerID, &db.Name, &db.Description, &db.Purpose,
		&db.Status, &db.CreatedAt, &db.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	db.CreatedAt = db.CreatedAt.UTC()
	db.UpdatedAt = db.UpdatedAt.UTC()
	db.DeletedAt = nullTime(deleted)
	return &db, nil
}

func databaseValues(db *types.Database) map[string]any {
	return map[string]any{
		"id":          db.ID,
		"server_id":   db.ServerID,
		"name":        db.Name,
		"description": db.Description,
		"purpose":     db.Purpose,
		"status":      string(db.Status),
		"created_at":  db.CreatedAt,
		"updated_at":  db.UpdatedAt,
		"deleted_at":  timeArg(db.DeletedAt),
	}
}

func databaseDocument(db *types.Database) *search.Document {
	return &search.Document{
		EntityType:  types.EntityDatabase,
		EntityID:    db.ID,
		ParentID:    db.ServerID,
		Name:        db.Name,
		Description: db.Description,
		Keywords:    nonEmpty(db.Purpose),
		UpdatedAt:   db.UpdatedAt,
	}
}

func (s *Service) GetDatabase(ctx context.Context, id string, includeDeleted bool) (*types.Database, error) {
	return fetchByID(ctx, s, s.store.DB(), databaseMeta, id, includeDeleted, false, scanDatabase)
}

func (s *Service) ListDatabases(ctx context.Context, f types.DatabaseFilter) (*types.Page[types.Database], error) {
	where := squirrel.And{}
	if f.ServerID != "" {
		where = append(where, squirrel.Eq{"server_id": f.ServerID})
	}
	if f.Status != "" {
		where = append(where, squirrel.Eq{"status": string(f.Status)})
	}
	return listPage(ctx, s, databaseMeta, where, f.ListOptions, scanDatabase)
}

func (s *Service) CreateDatabase(ctx context.Context, actor types.Actor, in types.CreateDatabaseInput) (*types.Database, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := required("serverId", in.ServerID); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	status, err := inputStatus(in.Status)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	db := &types.Database{
		ID:          uuid.NewString(),
		ServerID:    in.ServerID,
		Name:        in.Name,
		Description: in.Description,
		Purpose:     in.Purpose,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		// The server lock serializes this insert against a concurrent server delete.
		if _, err := fetchByID(ctx, s, tx, serverMeta, db.ServerID, false, true, scanServer); err != nil {
			return nil, err
		}
		if err := s.ensureUnique(ctx, tx, databaseMeta, "name", db.Name, squirrel.Eq{"server_id": db.ServerID}, ""); err != nil {
			return nil, err
		}
		if _, err := database.Exec(ctx, tx, s.qb.Insert(databaseMeta.Table).SetMap(databaseValues(db))); err != nil {
			return nil, storeErr(err, "failed to create database %q", db.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityDatabase, db.ID, types.ActionCreate, db); err != nil {
			return nil, err
		}
		return s.sideEffects(databaseMeta, db.ID, databaseDocument(db)), nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// UpdateDatabase patches a database. The owning server cannot be changed.
func (s *Service) UpdateDatabase(ctx context.Context, actor types.Actor, id string, in types.UpdateDatabaseInput) (*types.Database, error) {
	name, err := patchText("name", in.Name, true)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		if _, err := inputStatus(*in.Status); err != nil {
			return nil, err
		}
	}

	var updated *types.Database
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		before, err := fetchByID(ctx, s, tx, databaseMeta, id, false, true, scanDatabase)
		if err != nil {
			return nil, err
		}

		after := *before
		if name != nil && *name != before.Name {
			if err := s.ensureUnique(ctx, tx, databaseMeta, "name", *name, squirrel.Eq{"server_id": before.ServerID}, id); err != nil {
				return nil, err
			}
			after.Name = *name
		}
		if in.Description != nil {
			after.Description = *in.Description
		}
		if in.Purpose != nil {
			after.Purpose = *in.Purpose
		}
		if in.Status != nil && *in.Status != "" {
			after.Status = *in.Status
		}
		after.UpdatedAt = s.timestamp()

		if _, err := database.Exec(ctx, tx, s.qb.Update(databaseMeta.Table).
			SetMap(databaseValues(&after)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to update database %q", after.Name)
		}
		if err := s.auditUpdate(ctx, tx, actor, types.EntityDatabase, id, before, &after); err != nil {
			return nil, err
		}
		updated = &after
		return s.sideEffects(databaseMeta, id, databaseDocument(&after)), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDatabase soft-deletes a database that has no active tables.
func (s *Service) DeleteDatabase(ctx context.Context, actor types.Actor, id string) (*types.Database, error) {
	var deleted *types.Database
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		db, err := fetchByID(ctx, s, tx, databaseMeta, id, false, true, scanDatabase)
		if err != nil {
			return nil, err
		}
		if err := s.guardCascade(ctx, tx, databaseMeta, db.Name, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		db.DeletedAt = &now
		db.UpdatedAt = now
		db.Status = types.StatusArchived
		if _, err := database.Exec(ctx, tx, s.qb.Update(databaseMeta.Table).
			Set("deleted_at", now).
			Set("updated_at", now).
			Set("status", string(types.StatusArchived)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to delete database %q", db.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityDatabase, id, types.ActionDelete, db); err != nil {
			return nil, err
		}
		deleted = db
		return s.sideEffects(databaseMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// RestoreDatabase brings a deleted database back under its server, which
// must itself be active.
func (s *Service) RestoreDatabase(ctx context.Context, actor types.Actor, id string) (*types.Database, error) {
	current, err := s.GetDatabase(ctx, id, true)
	if err != nil {
		return nil, err
	}

	var restored *types.Database
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if _, err := fetchByID(ctx, s, tx, serverMeta, current.ServerID, false, true, scanServer); err != nil {
			return nil, err
		}
		db, err := fetchByID(ctx, s, tx, databaseMeta, id, true, true, scanDatabase)
		if err != nil {
			return nil, err
		}
		if db.DeletedAt == nil {
			return nil, apperr.Conflict("database %q is not deleted", db.Name)
		}
		if err := s.ensureUnique(ctx, tx, databaseMeta, "name", db.Name, squirrel.Eq{"server_id": db.ServerID}, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		db.DeletedAt = nil
		db.UpdatedAt = now
		db.Status = types.StatusActive
		if _, err := database.Exec(ctx, tx, s.qb.Update(databaseMeta.Table).
			Set("deleted_at", nil).
			Set("updated_at", now).
			Set("status", string(types.StatusActive)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to restore database %q", db.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityDatabase, id, types.ActionRestore, db); err != nil {
			return nil, err
		}
		restored = db
		return s.sideEffects(databaseMeta, id, databaseDocument(db)), nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *Service) DatabaseStats(ctx context.Context) (*types.Stats, error) {
	return s.entityStats(ctx, databaseMeta, squirrel.Eq{"status": string(types.StatusActive)})
}

// FindDatabaseByName returns the non-deleted database called name on a
// server, or nil.
func (s *Service) FindDatabaseByName(ctx context.Context, serverID, name string) (*types.Database, error) {
	return fetchOne(ctx, s, s.store.DB(), databaseMeta, squirrel.Eq{"server_id": serverID, "name": name}, scanDatabase)
}
