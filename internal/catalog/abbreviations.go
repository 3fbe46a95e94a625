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

var abbreviationMeta = entityMeta{
	Type:  types.EntityAbbreviation,
	Label: "abbreviation",
	Table: database.TableAbbreviations,
	Columns: []string{
		"id", "source", "abbreviation", "definition", "is_prime_class", "category",
		"created_at", "updated_at", "deleted_at",
	},
	SearchColumns: []string{"source", "abbreviation", "definition"},
	Sortable: map[string]string{
		"abbreviation": "abbreviation",
		"source":       "source",
		"category":     "category",
		"createdAt":    "created_at",
		"updatedAt":    "updated_at",
	},
	DefaultSort: "abbreviation",
	TypeColumn:  "category",
}

func scanAbbreviation(row rowScanner) (*types.Abbreviation, error) {
	var (
		a       types.Abbreviation
		deleted sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Source, &a.Abbreviation, &a.Definition, &a.IsPrimeClass, &a.Category,
		&a.CreatedAt, &a.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.DeletedAt = nullTime(deleted)
	return &a, nil
}

func abbreviationValues(a *types.Abbreviation) map[string]any {
	return map[string]any{
		"id":             a.ID,
		"source":         a.Source,
		"abbreviation":   a.Abbreviation,
		"definition":     a.Definition,
		"is_prime_class": a.IsPrimeClass,
		"category":       a.Category,
		"created_at":     a.CreatedAt,
		"updated_at":     a.UpdatedAt,
		"deleted_at":     timeArg(a.DeletedAt),
	}
}

func abbreviationDocument(a *types.Abbreviation) *search.Document {
	return &search.Document{
		EntityType:  types.EntityAbbreviation,
		EntityID:    a.ID,
		Name:        a.Abbreviation,
		Description: a.Definition,
		Keywords:    nonEmpty(a.Source, a.Category),
		UpdatedAt:   a.UpdatedAt,
	}
}

func (s *Service) GetAbbreviation(ctx context.Context, id string, includeDeleted bool) (*types.Abbreviation, error) {
	return fetchByID(ctx, s, s.store.DB(), abbreviationMeta, id, includeDeleted, false, scanAbbreviation)
}

func (s *Service) ListAbbreviations(ctx context.Context, f types.AbbreviationFilter) (*types.Page[types.Abbreviation], error) {
	where := squirrel.And{}
	if f.Source != "" {
		where = append(where, squirrel.Eq{"source": f.Source})
	}
	if f.Category != "" {
		where = append(where, squirrel.Eq{"category": f.Category})
	}
	if f.IsPrimeClass != nil {
		where = append(where, squirrel.Eq{"is_prime_class": *f.IsPrimeClass})
	}
	return listPage(ctx, s, abbreviationMeta, where, f.ListOptions, scanAbbreviation)
}

// AllAbbreviations returns every non-deleted abbreviation in alphabetical order.
func (s *Service) AllAbbreviations(ctx context.Context) ([]types.Abbreviation, error) {
	return listAll(ctx, s, abbreviationMeta, nil, "abbreviation ASC", scanAbbreviation)
}

func (s *Service) CreateAbbreviation(ctx context.Context, actor types.Actor, in types.CreateAbbreviationInput) (*types.Abbreviation, error) {
	in.Source = strings.TrimSpace(in.Source)
	in.Abbreviation = strings.TrimSpace(in.Abbreviation)
	in.Definition = strings.TrimSpace(in.Definition)
	if err := required("source", in.Source); err != nil {
		return nil, err
	}
	if err := required("abbreviation", in.Abbreviation); err != nil {
		return nil, err
	}
	if err := required("definition", in.Definition); err != nil {
		return nil, err
	}

	now := s.timestamp()
	a := &types.Abbreviation{
		ID:           uuid.NewString(),
		Source:       in.Source,
		Abbreviation: in.Abbreviation,
		Definition:   in.Definition,
		IsPrimeClass: in.IsPrimeClass,
		Category:     strings.TrimSpace(in.Category),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if err := s.ensureUnique(ctx, tx, abbreviationMeta, "abbreviation", a.Abbreviation, nil, ""); err != nil {
			return nil, err
		}
		if _, err := database.Exec(ctx, tx, s.qb.Insert(abbreviationMeta.Table).SetMap(abbreviationValues(a))); err != nil {
			return nil, storeErr(err, "failed to create abbreviation %q", a.Abbreviation)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityAbbreviation, a.ID, types.ActionCreate, a); err != nil {
			return nil, err
		}
		return s.sideEffects(abbreviationMeta, a.ID, abbreviationDocument(a)), nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) UpdateAbbreviation(ctx context.Context, actor types.Actor, id string, in types.UpdateAbbreviationInput) (*types.Abbreviation, error) {
	source, err := patchText("source", in.Source, true)
	if err != nil {
		return nil, err
	}
	abbr, err := patchText("abbreviation", in.Abbreviation, true)
	if err != nil {
		return nil, err
	}
	definition, err := patchText("definition", in.Definition, true)
	if err != nil {
		return nil, err
	}
	category, _ := patchText("category", in.Category, false)

	var updated *types.Abbreviation
	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		before, err := fetchByID(ctx, s, tx, abbreviationMeta, id, false, true, scanAbbreviation)
		if err != nil {
			return nil, err
		}

		after := *before
		if abbr != nil && *abbr != before.Abbreviation {
			if err := s.ensureUnique(ctx, tx, abbreviationMeta, "abbreviation", *abbr, nil, id); err != nil {
				return nil, err
			}
			after.Abbreviation = *abbr
		}
		if source != nil {
			after.Source = *source
		}
		if definition != nil {
			after.Definition = *definition
		}
		if in.IsPrimeClass != nil {
			after.IsPrimeClass = *in.IsPrimeClass
		}
		if category != nil {
			after.Category = *category
		}
		after.UpdatedAt = s.timestamp()

		if _, err := database.Exec(ctx, tx, s.qb.Update(abbreviationMeta.Table).
			SetMap(abbreviationValues(&after)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to update abbreviation %q", after.Abbreviation)
		}
		if err := s.auditUpdate(ctx, tx, actor, types.EntityAbbreviation, id, before, &after); err != nil {
			return nil, err
		}
		updated = &after
		return s.sideEffects(abbreviationMeta, id, abbreviationDocument(&after)), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteAbbreviation(ctx context.Context, actor types.Actor, id string) (*types.Abbreviation, error) {
	var deleted *types.Abbreviation
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		a, err := fetchByID(ctx, s, tx, abbreviationMeta, id, false, true, scanAbbreviation)
		if err != nil {
			return nil, err
		}

		now := s.timestamp()
		a.DeletedAt = &now
		a.UpdatedAt = now
		if _, err := database.Exec(ctx, tx, s.qb.Update(abbreviationMeta.Table).
			Set("deleted_at", now).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to delete abbreviation %q", a.Abbreviation)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityAbbreviation, id, types.ActionDelete, a); err != nil {
			return nil, err
		}
		deleted = a
		return s.sideEffects(abbreviationMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Service) RestoreAbbreviation(ctx context.Context, actor types.Actor, id string) (*types.Abbreviation, error) {
	var restored *types.Abbreviation
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		a, err := fetchByID(ctx, s, tx, abbreviationMeta, id, true, true, scanAbbreviation)
		if err != nil {
			return nil, err
		}
		if a.DeletedAt == nil {
			return nil, apperr.Conflict("abbreviation %q is not deleted", a.Abbreviation)
		}
		if err := s.ensureUnique(ctx, tx, abbreviationMeta, "abbreviation", a.Abbreviation, nil, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		a.DeletedAt = nil
		a.UpdatedAt = now
		if _, err := database.Exec(ctx, tx, s.qb.Update(abbreviationMeta.Table).
			Set("deleted_at", nil).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to restore abbreviation %q", a.Abbreviation)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityAbbreviation, id, types.ActionRestore, a); err != nil {
			return nil, err
		}
		restored = a
		return s.sideEffects(abbreviationMeta, id, abbreviationDocument(a)), nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *Service) AbbreviationStats(ctx context.Context) (*types.Stats, error) {
	return s.entityStats(ctx, abbreviationMeta, nil)
}
