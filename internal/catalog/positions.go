package catalog

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/database"
)

// Non-deleted elements of a table always hold positions 1..n. Every function
// here must run inside a transaction that holds the owning table's row lock.

func (s *Service) activeElementCount(ctx context.Context, q database.Querier, tableID string) (int, error) {
	return database.Count(ctx, q, s.qb.Select("COUNT(*)").
		From(database.TableElements).
		Where(squirrel.Eq{"table_id": tableID, "deleted_at": nil}))
}

// nextPosition returns max(position)+1 over the table's non-deleted elements.
func (s *Service) nextPosition(ctx context.Context, q database.Querier, tableID string) (int, error) {
	return database.Count(ctx, q, s.qb.Select("COALESCE(MAX(position), 0) + 1").
		From(database.TableElements).
		Where(squirrel.Eq{"table_id": tableID, "deleted_at": nil}))
}

// shiftPositions adds delta to the position of every non-deleted element in
// [from, to]. A zero to leaves the range open-ended.
func (s *Service) shiftPositions(ctx context.Context, q database.Querier, tableID string, from, to, delta int, excludeID string) error {
	where := squirrel.And{
		squirrel.Eq{"table_id": tableID, "deleted_at": nil},
		squirrel.GtOrEq{"position": from},
	}
	if to > 0 {
		where = append(where, squirrel.LtOrEq{"position": to})
	}
	if excludeID != "" {
		where = append(where, squirrel.NotEq{"id": excludeID})
	}

	_, err := database.Exec(ctx, q, s.qb.Update(database.TableElements).
		Set("position", squirrel.Expr("position + ?", delta)).
		Where(where))
	return err
}

// openSlot makes room at pos by moving every element at or after it down one.
func (s *Service) openSlot(ctx context.Context, q database.Querier, tableID string, pos int) error {
	return s.shiftPositions(ctx, q, tableID, pos, 0, 1, "")
}

// closeGap moves every element after pos up one, used after a removal.
func (s *Service) closeGap(ctx context.Context, q database.Querier, tableID string, pos int) error {
	return s.shiftPositions(ctx, q, tableID, pos+1, 0, -1, "")
}

// moveElement relocates an element from oldPos to newPos, shifting the
// elements in between.
func (s *Service) moveElement(ctx context.Context, q database.Querier, tableID, id string, oldPos, newPos int) error {
	switch {
	case newPos < oldPos:
		return s.shiftPositions(ctx, q, tableID, newPos, oldPos-1, 1, id)
	case newPos > oldPos:
		return s.shiftPositions(ctx, q, tableID, oldPos+1, newPos, -1, id)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
