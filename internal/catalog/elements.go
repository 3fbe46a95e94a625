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

var elementMeta = entityMeta{
	Type:  types.EntityElement,
	Label: "element",
	Table: database.TableElements,
	Columns: []string{
		"id", "table_id", "name", "description", "data_type", "length", "num_precision", "num_scale",
		"is_nullable", "is_primary_key", "is_foreign_key", "default_value", "position", "deleted_position",
		"status", "created_at", "updated_at", "deleted_at",
	},
	SearchColumns: []string{"name", "description", "data_type"},
	Sortable: map[string]string{
		"position":  "position",
		"name":      "name",
		"dataType":  "data_type",
		"status":    "status",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	DefaultSort:  "position",
	StatusColumn: "status",
	TypeColumn:   "data_type",
}

func scanElement(row rowScanner) (*types.Element, error) {
	var (
		e                        types.Element
		length, precision, scale sql.NullInt64
		deletedPosition          sql.NullInt64
		deleted                  sql.NullTime
	)
	err := row.Scan(&e.ID, &e.TableID, &e.Name, &e.Description, &e.DataType, &length, &precision, &scale,
		&e.IsNullable, &e.IsPrimaryKey, &e.IsForeignKey, &e.DefaultValue, &e.Position, &deletedPosition,
		&e.Status, &e.CreatedAt, &e.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	e.Length = nullInt(length)
	e.Precision = nullInt(precision)
	e.Scale = nullInt(scale)
	e.DeletedPosition = nullInt(deletedPosition)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.DeletedAt = nullTime(deleted)
	return &e, nil
}

func elementValues(e *types.Element) map[string]any {
	return map[string]any{
		"id":               e.ID,
		"table_id":         e.TableID,
		"name":             e.Name,
		"description":      e.Description,
		"data_type":        e.DataType,
		"length":           intArg(e.Length),
		"num_precision":    intArg(e.Precision),
		"num_scale":        intArg(e.Scale),
		"is_nullable":      e.IsNullable,
		"is_primary_key":   e.IsPrimaryKey,
		"is_foreign_key":   e.IsForeignKey,
		"default_value":    e.DefaultValue,
		"position":         e.Position,
		"deleted_position": intArg(e.DeletedPosition),
		"status":           string(e.Status),
		"created_at":       e.CreatedAt,
		"updated_at":       e.UpdatedAt,
		"deleted_at":       timeArg(e.DeletedAt),
	}
}

func elementDocument(e *types.Element) *search.Document {
	return &search.Document{
		EntityType:  types.EntityElement,
		EntityID:    e.ID,
		ParentID:    e.TableID,
		Name:        e.Name,
		Description: e.Description,
		Keywords:    nonEmpty(e.DataType),
		UpdatedAt:   e.UpdatedAt,
	}
}

func validateElementSizes(length, precision, scale *int) error {
	if err := nonNegative("length", length); err != nil {
		return err
	}
	if err := nonNegative("precision", precision); err != nil {
		return err
	}
	return nonNegative("scale", scale)
}

func (s *Service) GetElement(ctx context.Context, id string, includeDeleted bool) (*types.Element, error) {
	return fetchByID(ctx, s, s.store.DB(), elementMeta, id, includeDeleted, false, scanElement)
}

func (s *Service) ListElements(ctx context.Context, f types.ElementFilter) (*types.Page[types.Element], error) {
	where := squirrel.And{}
	if f.TableID != "" {
		where = append(where, squirrel.Eq{"table_id": f.TableID})
	}
	if f.IsPrimaryKey != nil {
		where = append(where, squirrel.Eq{"is_primary_key": *f.IsPrimaryKey})
	}
	if f.IsForeignKey != nil {
		where = append(where, squirrel.Eq{"is_foreign_key": *f.IsForeignKey})
	}
	return listPage(ctx, s, elementMeta, where, f.ListOptions, scanElement)
}

// TableElements returns the non-deleted elements of a table in position order.
func (s *Service) TableElements(ctx context.Context, tableID string) ([]types.Element, error) {
	return listAll(ctx, s, elementMeta, squirrel.Eq{"table_id": tableID}, "position ASC", scanElement)
}

// CreateElement adds a column to a table. A zero position appends; an
// explicit one is clamped to 1..n+1 and later siblings move down.
func (s *Service) CreateElement(ctx context.Context, actor types.Actor, in types.CreateElementInput) (*types.Element, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DataType = strings.TrimSpace(in.DataType)
	if err := required("tableId", in.TableID); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if err := required("dataType", in.DataType); err != nil {
		return nil, err
	}
	if in.Position < 0 {
		return nil, apperr.Validation("position must not be negative")
	}
	if err := validateElementSizes(in.Length, in.Precision, in.Scale); err != nil {
		return nil, err
	}
	status, err := inputStatus(in.Status)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	e := &types.Element{
		ID:           uuid.NewString(),
		TableID:      in.TableID,
		Name:         in.Name,
		Description:  in.Description,
		DataType:     in.DataType,
		Length:       in.Length,
		Precision:    in.Precision,
		Scale:        in.Scale,
		IsNullable:   in.IsNullable,
		IsPrimaryKey: in.IsPrimaryKey,
		IsForeignKey: in.IsForeignKey,
		DefaultValue: in.DefaultValue,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if _, err := fetchByID(ctx, s, tx, tableMeta, e.TableID, false, true, scanTable); err != nil {
			return nil, err
		}
		if err := s.ensureUnique(ctx, tx, elementMeta, "name", e.Name, squirrel.Eq{"table_id": e.TableID}, ""); err != nil {
			return nil, err
		}

		if in.Position == 0 {
			next, err := s.nextPosition(ctx, tx, e.TableID)
			if err != nil {
				return nil, apperr.Unexpected(err, "failed to compute element position")
			}
			e.Position = next
		} else {
			n, err := s.activeElementCount(ctx, tx, e.TableID)
			if err != nil {
				return nil, apperr.Unexpected(err, "failed to count elements")
			}
			e.Position = clamp(in.Position, 1, n+1)
			if err := s.openSlot(ctx, tx, e.TableID, e.Position); err != nil {
				return nil, apperr.Unexpected(err, "failed to shift element positions")
			}
		}

		if _, err := database.Exec(ctx, tx, s.qb.Insert(elementMeta.Table).SetMap(elementValues(e))); err != nil {
			return nil, storeErr(err, "failed to create element %q", e.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityElement, e.ID, types.ActionCreate, e); err != nil {
			return nil, err
		}
		return s.sideEffects(elementMeta, e.ID, elementDocument(e)), nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateElement patches an element. A new position is clamped to 1..n and
// the siblings in between shift by one. The owning table cannot be changed.
func (s *Service) UpdateElement(ctx context.Context, actor types.Actor, id string, in types.UpdateElementInput) (*types.Element, error) {
	name, err := patchText("name", in.Name, true)
	if err != nil {
		return nil, err
	}
	dataType, err := patchText("dataType", in.DataType, true)
	if err != nil {
		return nil, err
	}
	if in.Position != nil && *in.Position < 1 {
		return nil, apperr.Validation("position must be at least 1")
	}
	if err := validateElementSizes(in.Length, in.Precision, in.Scale); err != nil {
		return nil, err
	}
	if in.Status != nil {
		if _, err := inputStatus(*in.Status); err != nil {
			return nil, err
		}
	}

	current, err := s.GetElement(ctx, id, false)
	if err != nil {
		return nil, err
	}

	var updated *types.Element
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		// Element writes lock the owning table before the element so
		// writers on one table queue instead of deadlocking.
		if _, err := fetchByID(ctx, s, tx, tableMeta, current.TableID, true, true, scanTable); err != nil {
			return nil, err
		}
		before, err := fetchByID(ctx, s, tx, elementMeta, id, false, true, scanElement)
		if err != nil {
			return nil, err
		}

		after := *before
		if name != nil && *name != before.Name {
			if err := s.ensureUnique(ctx, tx, elementMeta, "name", *name, squirrel.Eq{"table_id": before.TableID}, id); err != nil {
				return nil, err
			}
			after.Name = *name
		}
		if in.Description != nil {
			after.Description = *in.Description
		}
		if dataType != nil {
			after.DataType = *dataType
		}
		if in.Length != nil {
			after.Length = in.Length
		}
		if in.Precision != nil {
			after.Precision = in.Precision
		}
		if in.Scale != nil {
			after.Scale = in.Scale
		}
		if in.IsNullable != nil {
			after.IsNullable = *in.IsNullable
		}
		if in.IsPrimaryKey != nil {
			after.IsPrimaryKey = *in.IsPrimaryKey
		}
		if in.IsForeignKey != nil {
			after.IsForeignKey = *in.IsForeignKey
		}
		if in.DefaultValue != nil {
			after.DefaultValue = *in.DefaultValue
		}
		if in.Status != nil && *in.Status != "" {
			after.Status = *in.Status
		}

		if in.Position != nil && *in.Position != before.Position {
			n, err := s.activeElementCount(ctx, tx, before.TableID)
			if err != nil {
				return nil, apperr.Unexpected(err, "failed to count elements")
			}
			after.Position = clamp(*in.Position, 1, n)
			if err := s.moveElement(ctx, tx, before.TableID, id, before.Position, after.Position); err != nil {
				return nil, apperr.Unexpected(err, "failed to shift element positions")
			}
		}
		after.UpdatedAt = s.timestamp()

		if _, err := database.Exec(ctx, tx, s.qb.Update(elementMeta.Table).
			SetMap(elementValues(&after)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to update element %q", after.Name)
		}
		if err := s.auditUpdate(ctx, tx, actor, types.EntityElement, id, before, &after); err != nil {
			return nil, err
		}
		updated = &after
		return s.sideEffects(elementMeta, id, elementDocument(&after)), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteElement soft-deletes an element, remembers its slot in
// deleted_position and closes the gap it leaves.
func (s *Service) DeleteElement(ctx context.Context, actor types.Actor, id string) (*types.Element, error) {
	current, err := s.GetElement(ctx, id, false)
	if err != nil {
		return nil, err
	}

	var deleted *types.Element
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if _, err := fetchByID(ctx, s, tx, tableMeta, current.TableID, true, true, scanTable); err != nil {
			return nil, err
		}
		e, err := fetchByID(ctx, s, tx, elementMeta, id, false, true, scanElement)
		if err != nil {
			return nil, err
		}

		now := s.timestamp()
		pos := e.Position
		e.DeletedAt = &now
		e.UpdatedAt = now
		e.Status = types.StatusArchived
		e.DeletedPosition = &pos
		if _, err := database.Exec(ctx, tx, s.qb.Update(elementMeta.Table).
			Set("deleted_at", now).
			Set("updated_at", now).
			Set("status", string(types.StatusArchived)).
			Set("deleted_position", pos).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to delete element %q", e.Name)
		}
		if err := s.closeGap(ctx, tx, e.TableID, pos); err != nil {
			return nil, apperr.Unexpected(err, "failed to shift element positions")
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityElement, id, types.ActionDelete, e); err != nil {
			return nil, err
		}
		deleted = e
		return s.sideEffects(elementMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// RestoreElement brings a deleted element back. RestoreAppend (the default)
// places it after the last sibling; RestoreOriginal reinserts it at its old
// slot, or at the end when the table has since shrunk below it.
func (s *Service) RestoreElement(ctx context.Context, actor types.Actor, id string, opts types.RestoreOptions) (*types.Element, error) {
	switch opts.Mode {
	case "":
		opts.Mode = types.RestoreAppend
	case types.RestoreAppend, types.RestoreOriginal:
	default:
		return nil, apperr.Validation("invalid restore mode %q", opts.Mode)
	}

	current, err := s.GetElement(ctx, id, true)
	if err != nil {
		return nil, err
	}

	var restored *types.Element
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if _, err := fetchByID(ctx, s, tx, tableMeta, current.TableID, false, true, scanTable); err != nil {
			return nil, err
		}
		e, err := fetchByID(ctx, s, tx, elementMeta, id, true, true, scanElement)
		if err != nil {
			return nil, err
		}
		if e.DeletedAt == nil {
			return nil, apperr.Conflict("element %q is not deleted", e.Name)
		}
		if err := s.ensureUnique(ctx, tx, elementMeta, "name", e.Name, squirrel.Eq{"table_id": e.TableID}, id); err != nil {
			return nil, err
		}

		n, err := s.activeElementCount(ctx, tx, e.TableID)
		if err != nil {
			return nil, apperr.Unexpected(err, "failed to count elements")
		}
		pos := n + 1
		if opts.Mode == types.RestoreOriginal && e.DeletedPosition != nil {
			pos = clamp(*e.DeletedPosition, 1, n+1)
			if err := s.openSlot(ctx, tx, e.TableID, pos); err != nil {
				return nil, apperr.Unexpected(err, "failed to shift element positions")
			}
		}

		now := s.timestamp()
		e.DeletedAt = nil
		e.DeletedPosition = nil
		e.UpdatedAt = now
		e.Status = types.StatusActive
		e.Position = pos
		if _, err := database.Exec(ctx, tx, s.qb.Update(elementMeta.Table).
			Set("deleted_at", nil).
			Set("deleted_position", nil).
			Set("updated_at", now).
			Set("status", string(types.StatusActive)).
			Set("position", pos).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to restore element %q", e.Name)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityElement, id, types.ActionRestore, e); err != nil {
			return nil, err
		}
		restored = e
		return s.sideEffects(elementMeta, id, elementDocument(e)), nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *Service) ElementStats(ctx context.Context) (*types.Stats, error) {
	return s.entityStats(ctx, elementMeta, squirrel.Eq{"status": string(types.StatusActive)})
}
