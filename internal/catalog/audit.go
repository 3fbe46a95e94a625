package catalog

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/types"
)

var auditMeta = entityMeta{
	Label:   "audit log",
	Table:   database.TableAuditLogs,
	Columns: []string{"id", "entity_type", "entity_id", "action", "user_id", "changes", "created_at"},
	Sortable: map[string]string{
		"createdAt":  "created_at",
		"entityType": "entity_type",
		"action":     "action",
	},
	DefaultSort: "created_at",
}

type updateChanges struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// writeAudit appends one audit row inside tx. A failure aborts the mutation.
func (s *Service) writeAudit(ctx context.Context, tx *sql.Tx, actor types.Actor, entity types.EntityType, id string, action types.AuditAction, changes any) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return apperr.Unexpected(err, "failed to encode audit changes")
	}

	var userID any
	if actor.UserID != "" {
		userID = actor.UserID
	}

	_, err = database.Exec(ctx, tx, s.qb.Insert(database.TableAuditLogs).
		Columns(auditMeta.Columns...).
		Values(uuid.NewString(), string(entity), id, string(action), userID, string(payload), s.timestamp()))
	if err != nil {
		return apperr.Unexpected(err, "failed to write audit log for %s %s", entity, id)
	}
	return nil
}

func (s *Service) auditUpdate(ctx context.Context, tx *sql.Tx, actor types.Actor, entity types.EntityType, id string, before, after any) error {
	return s.writeAudit(ctx, tx, actor, entity, id, types.ActionUpdate, updateChanges{Before: before, After: after})
}

func scanAuditLog(row rowScanner) (*types.AuditLog, error) {
	var (
		a       types.AuditLog
		userID  sql.NullString
		changes []byte
	)
	if err := row.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Action, &userID, &changes, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.UserID = userID.String
	a.Changes = json.RawMessage(changes)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

// ListAuditLogs returns audit rows newest first unless another order is asked for.
func (s *Service) ListAuditLogs(ctx context.Context, f types.AuditFilter) (*types.Page[types.AuditLog], error) {
	where := squirrel.And{}
	if f.EntityType != "" {
		where = append(where, squirrel.Eq{"entity_type": string(f.EntityType)})
	}
	if f.EntityID != "" {
		where = append(where, squirrel.Eq{"entity_id": f.EntityID})
	}
	if f.UserID != "" {
		where = append(where, squirrel.Eq{"user_id": f.UserID})
	}
	if f.Action != "" {
		where = append(where, squirrel.Eq{"action": string(f.Action)})
	}
	if f.From != nil {
		where = append(where, squirrel.GtOrEq{"created_at": f.From.UTC()})
	}
	if f.To != nil {
		where = append(where, squirrel.LtOrEq{"created_at": f.To.UTC()})
	}
	if f.SortBy == "" && f.SortOrder == "" {
		f.SortOrder = types.SortDesc
	}

	opts := f.ListOptions
	opts.Normalize(s.opts.DefaultLimit, s.opts.MaxLimit)
	orderBy, err := auditMeta.orderBy(opts)
	if err != nil {
		return nil, err
	}

	total, err := database.Count(ctx, s.store.DB(), s.qb.Select("COUNT(*)").From(auditMeta.Table).Where(where))
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to count audit logs")
	}

	rows, err := database.Query(ctx, s.store.DB(), s.qb.Select(auditMeta.Columns...).
		From(auditMeta.Table).
		Where(where).
		OrderBy(orderBy, "id ASC").
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset())))
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list audit logs")
	}
	defer rows.Close()

	logs := make([]types.AuditLog, 0, opts.Limit)
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, apperr.Unexpected(err, "failed to read audit log")
		}
		logs = append(logs, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err, "failed to list audit logs")
	}

	return &types.Page[types.AuditLog]{
		Items:      logs,
		Pagination: types.NewPagination(opts.Page, opts.Limit, total),
	}, nil
}

// EntityHistory returns every audit row of one entity, oldest first.
func (s *Service) EntityHistory(ctx context.Context, entity types.EntityType, id string) ([]types.AuditLog, error) {
	if !validID(id) {
		return nil, apperr.NotFound("%s %s not found", labels[entity], id)
	}

	rows, err := database.Query(ctx, s.store.DB(), s.qb.Select(auditMeta.Columns...).
		From(auditMeta.Table).
		Where(squirrel.Eq{"entity_type": string(entity), "entity_id": id}).
		OrderBy("created_at ASC", "id ASC"))
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to load history")
	}
	defer rows.Close()

	logs := []types.AuditLog{}
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, apperr.Unexpected(err, "failed to read audit log")
		}
		logs = append(logs, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err, "failed to load history")
	}
	if len(logs) == 0 {
		return nil, apperr.NotFound("%s %s not found", labels[entity], id)
	}
	return logs, nil
}
