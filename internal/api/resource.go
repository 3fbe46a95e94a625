package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/types"
)

// resource binds one catalog entity's operations to its REST routes.
// T is the entity, C and U its create and update inputs, F its list filter.
type resource[T, C, U, F any] struct {
	entity  types.EntityType
	filter  func(*fiber.Ctx, types.ListOptions) (F, error)
	list    func(context.Context, F) (*types.Page[T], error)
	get     func(context.Context, string, bool) (*T, error)
	create  func(context.Context, types.Actor, C) (*T, error)
	update  func(context.Context, types.Actor, string, U) (*T, error)
	remove  func(context.Context, types.Actor, string) (*T, error)
	restore func(context.Context, types.Actor, string, types.RestoreOptions) (*T, error)
	stats   func(context.Context) (*types.Stats, error)
}

type permissions struct {
	read   auth.Permission
	write  auth.Permission
	remove auth.Permission
}

var catalogPermissions = permissions{read: auth.PermRead, write: auth.PermWrite, remove: auth.PermDelete}

// ignoreOptions adapts a restore that has no placement options.
func ignoreOptions[T any](fn func(context.Context, types.Actor, string) (*T, error)) func(context.Context, types.Actor, string, types.RestoreOptions) (*T, error) {
	return func(ctx context.Context, a types.Actor, id string, _ types.RestoreOptions) (*T, error) {
		return fn(ctx, a, id)
	}
}

func mount[T, C, U, F any](s *Server, router fiber.Router, r resource[T, C, U, F], p permissions) {
	router.Get("/", requirePermission(p.read), func(c *fiber.Ctx) error {
		opts, err := listOptions(c)
		if err != nil {
			return err
		}
		f, err := r.filter(c, opts)
		if err != nil {
			return err
		}
		page, err := r.list(c.UserContext(), f)
		if err != nil {
			return err
		}
		return paged(c, page)
	})

	router.Get("/stats", requirePermission(p.read), func(c *fiber.Ctx) error {
		stats, err := r.stats(c.UserContext())
		if err != nil {
			return err
		}
		return ok(c, stats)
	})

	router.Get("/:id", requirePermission(p.read), func(c *fiber.Ctx) error {
		withDeleted, err := includeDeleted(c)
		if err != nil {
			return err
		}
		item, err := r.get(c.UserContext(), c.Params("id"), withDeleted)
		if err != nil {
			return err
		}
		return ok(c, item)
	})

	router.Get("/:id/history", requirePermission(p.read), func(c *fiber.Ctx) error {
		history, err := s.catalog.EntityHistory(c.UserContext(), r.entity, c.Params("id"))
		if err != nil {
			return err
		}
		return ok(c, history)
	})

	router.Post("/", requirePermission(p.write), func(c *fiber.Ctx) error {
		var in C
		if err := parseBody(c, &in); err != nil {
			return err
		}
		item, err := r.create(c.UserContext(), actor(c), in)
		if err != nil {
			return err
		}
		return created(c, item)
	})

	router.Put("/:id", requirePermission(p.write), func(c *fiber.Ctx) error {
		var in U
		if err := parseBody(c, &in); err != nil {
			return err
		}
		item, err := r.update(c.UserContext(), actor(c), c.Params("id"), in)
		if err != nil {
			return err
		}
		return ok(c, item)
	})

	router.Delete("/:id", requirePermission(p.remove), func(c *fiber.Ctx) error {
		item, err := r.remove(c.UserContext(), actor(c), c.Params("id"))
		if err != nil {
			return err
		}
		return ok(c, item)
	})

	router.Post("/:id/restore", requirePermission(p.remove), func(c *fiber.Ctx) error {
		opts := types.RestoreOptions{Mode: types.RestoreMode(c.Query("mode"))}
		if len(c.Body()) > 0 {
			if err := parseBody(c, &opts); err != nil {
				return err
			}
		}
		item, err := r.restore(c.UserContext(), actor(c), c.Params("id"), opts)
		if err != nil {
			return err
		}
		return ok(c, item)
	})
}
