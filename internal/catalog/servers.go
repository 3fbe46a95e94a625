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

var serverMeta = entityMeta{
	Type:  types.EntityServer,
	Label: "server",
	Table: database.TableServers,
	Columns: []string{
		"id", "name", "description", "rdbms_type", "host", "port", "location",
		"status", "created_at", "updated_at", "deleted_at",
	},
	SearchColumns: []string{"name", "description", "host", "location"},
	Sortable: map[string]string{
		"name":      "name",
		"rdbmsType": "rdbms_type",
		"status":    "status",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	DefaultSort:  "name",
	StatusColumn: "status",
	TypeColumn:   "rdbms_type",
}

func scanServer(row rowScanner) (*types.Server, error) {
	var (
		srv     types.Server
		deleted sql.NullTime
	)
	err := row.Scan(&srv.ID, &srv.Name, &srv.Description, &srv.RDBMSType, &srv.Host, &srv.Port,
		&srv.Location, &srv.Status, &srv.CreatedAt, &srv.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	srv.CreatedAt = srv.CreatedAt.UTC()
	srv.UpdatedAt = srv.UpdatedAt.UTC()
	srv.DeletedAt = nullTime(deleted)
	return &srv, nil
}

func serverValues(srv *types.Server) map[string]any {
	return map[string]any{
		"id":          srv.ID,
		"name":        srv.Name,
		"description": srv.Description,
		"rdbms_type":  string(srv.RDBMSType),
		"host":        srv.Host,
		"port":        srv.Port,
		"location":    srv.Location,
		"status":      string(srv.Status),
		"created_at":  srv.CreatedAt,
		"updated_at":  srv.UpdatedAt,
		"deleted_at":  timeArg(srv.DeletedAt),
	}
}

func serverDocument(srv *types.Server) *search.Document {
	return &search.Document{
		EntityType:  types.EntityServer,
		EntityID:    srv.ID,
		Name:        srv.Name,
		Description: srv.Description,
		Keywords:    nonEmpty(string(srv.RDBMSType), srv.Host, srv.Location),
		UpdatedAt:   srv.UpdatedAt,
	}
}

func (s *Service) GetServer(ctx context.Context, id string, includeDeleted bool) (*types.Server, error) {
	return fetchByID(ctx, s, s.store.DB(), serverMeta, id, includeDeleted, false, scanServer)
}

func (s *Service) ListServers(ctx context.Context, f types.ServerFilter) (*types.Page[types.Server], error) {
	where := squirrel.And{}
	if f.RDBMSType != "" {
		where = append(where, squirrel.Eq{"rdbms_type": string(f.RDBMSType)})
	}
	if f.Status != "" {
		where = append(where, squirrel.Eq{"status": string(f.Status)})
	}
	return listPage(ctx, s, serverMeta, where, f.ListOptions, scanServer)
}

func (s *Service) CreateServer(ctx context.Context, actor types.Actor, in types.CreateServerInput) (*types.Server, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if err := required("rdbmsType", string(in.RDBMSType)); err != nil {
		return nil, err
	}
	if !in.RDBMSType.Valid() {
		return nil, apperr.Validation("invalid rdbmsType %q", in.RDBMSType)
	}
	if err := validPort(in.Port); err != nil {
		return nil, err
	}
	status, err := inputStatus(in.Status)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	srv := &types.Server{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		RDBMSType:   in.RDBMSType,
		Host:        strings.TrimSpace(in.Host),
		Port:        in.Port,
		Location:    in.Location,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if err := s.ensureUnique(ctx, tx, serverMeta, "name", srv.Name, nil, ""); err != nil {
			return nil, err
		}
		if _, err := database.Exec(ctx, tx, s.qb.Insert(serverMeta.Table).SetMap(serverValues(srv))); err != nil {
			return nil, storeErr(err, "failed to create server %q", srv.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityServer, srv.ID, types.ActionCreate, srv); err != nil {
			return nil, err
		}
		return s.sideEffects(serverMeta, srv.ID, serverDocument(srv)), nil
	})
	if err != nil {
		return nil, err
	}
	return srv, nil
}

func (s *Service) UpdateServer(ctx context.Context, actor types.Actor, id string, in types.UpdateServerInput) (*types.Server, error) {
	name, err := patchText("name", in.Name, true)
	if err != nil {
		return nil, err
	}
	if in.RDBMSType != nil && !in.RDBMSType.Valid() {
		return nil, apperr.Validation("invalid rdbmsType %q", *in.RDBMSType)
	}
	if in.Port != nil {
		if err := validPort(*in.Port); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		if _, err := inputStatus(*in.Status); err != nil {
			return nil, err
		}
	}

	var updated *types.Server
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		before, err := fetchByID(ctx, s, tx, serverMeta, id, false, true, scanServer)
		if err != nil {
			return nil, err
		}

		after := *before
		if name != nil && *name != before.Name {
			if err := s.ensureUnique(ctx, tx, serverMeta, "name", *name, nil, id); err != nil {
				return nil, err
			}
			after.Name = *name
		}
		if in.Description != nil {
			after.Description = *in.Description
		}
		if in.RDBMSType != nil {
			after.RDBMSType = *in.RDBMSType
		}
		if in.Host != nil {
			after.Host = strings.TrimSpace(*in.Host)
		}
		if in.Port != nil {
			after.Port = *in.Port
		}
		if in.Location != nil {
			after.Location = *in.Location
		}
		if in.Status != nil && *in.Status != "" {
			after.Status = *in.Status
		}
		after.UpdatedAt = s.timestamp()

		if _, err := database.Exec(ctx, tx, s.qb.Update(serverMeta.Table).
			SetMap(serverValues(&after)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to update server %q", after.Name)
		}
		if err := s.auditUpdate(ctx, tx, actor, types.EntityServer, id, before, &after); err != nil {
			return nil, err
		}
		updated = &after
		return s.sideEffects(serverMeta, id, serverDocument(&after)), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteServer soft-deletes a server that has no active databases.
func (s *Service) DeleteServer(ctx context.Context, actor types.Actor, id string) (*types.Server, error) {
	var deleted *types.Server
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		srv, err := fetchByID(ctx, s, tx, serverMeta, id, false, true, scanServer)
		if err != nil {
			return nil, err
		}
		if err := s.guardCascade(ctx, tx, serverMeta, srv.Name, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		srv.DeletedAt = &now
		srv.UpdatedAt = now
		srv.Status = types.StatusArchived
		if _, err := database.Exec(ctx, tx, s.qb.Update(serverMeta.Table).
			Set("deleted_at", now).
			Set("updated_at", now).
			Set("status", string(types.StatusArchived)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to delete server %q", srv.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityServer, id, types.ActionDelete, srv); err != nil {
			return nil, err
		}
		deleted = srv
		return s.sideEffects(serverMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Service) RestoreServer(ctx context.Context, actor types.Actor, id string) (*types.Server, error) {
	var restored *types.Server
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		srv, err := fetchByID(ctx, s, tx, serverMeta, id, true, true, scanServer)
		if err != nil {
			return nil, err
		}
		if srv.DeletedAt == nil {
			return nil, apperr.Conflict("server %q is not deleted", srv.Name)
		}
		if err := s.ensureUnique(ctx, tx, serverMeta, "name", srv.Name, nil, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		srv.DeletedAt = nil
		srv.UpdatedAt = now
		srv.Status = types.StatusActive
		if _, err := database.Exec(ctx, tx, s.qb.Update(serverMeta.Table).
			Set("deleted_at", nil).
			Set("updated_at", now).
			Set("status", string(types.StatusActive)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to restore server %q", srv.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityServer, id, types.ActionRestore, srv); err != nil {
			return nil, err
		}
		restored = srv
		return s.sideEffects(serverMeta, id, serverDocument(srv)), nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *Service) ServerStats(ctx context.Context) (*types.Stats, error) {
	return s.entityStats(ctx, serverMeta, squirrel.Eq{"status": string(types.StatusActive)})
}

// FindServerByName returns the non-deleted server called name, or nil.
func (s *Service) FindServerByName(ctx context.Context, name string) (*types.Server, error) {
	return fetchOne(ctx, s, s.store.DB(), serverMeta, squirrel.Eq{"name": name}, scanServer)
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
