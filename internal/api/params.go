package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/types"
)

func intQuery(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", key)
	}
	return v, nil
}

func boolQuery(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("%s must be true or false", key)
	}
	return &v, nil
}

func timeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.Validation("%s must be an RFC 3339 timestamp", key)
	}
	return &t, nil
}

// idQuery reads an id filter. A malformed id is a bad request, not a lookup
// the store would reject.
func idQuery(c *fiber.Ctx, key string) (string, error) {
	raw := c.Query(key)
	if raw == "" {
		return "", nil
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperr.Validation("%s must be a UUID", key)
	}
	return raw, nil
}

func includeDeleted(c *fiber.Ctx) (bool, error) {
	v, err := boolQuery(c, "includeDeleted")
	if err != nil || v == nil {
		return false, err
	}
	return *v, nil
}

func listOptions(c *fiber.Ctx) (types.ListOptions, error) {
	var (
		opts types.ListOptions
		err  error
	)
	if opts.Page, err = intQuery(c, "page"); err != nil {
		return opts, err
	}
	if opts.Page > types.MaxPage {
		return opts, apperr.Validation("page must be at most %d", types.MaxPage)
	}
	if opts.Limit, err = intQuery(c, "limit"); err != nil {
		return opts, err
	}
	if opts.IncludeDeleted, err = includeDeleted(c); err != nil {
		return opts, err
	}
	opts.Search = c.Query("search")
	opts.SortBy = c.Query("sortBy")

	switch order := types.SortOrder(strings.ToLower(c.Query("sortOrder"))); order {
	case "", types.SortAsc, types.SortDesc:
		opts.SortOrder = order
	default:
		return opts, apperr.Validation("sortOrder must be asc or desc")
	}
	return opts, nil
}

func statusQuery(c *fiber.Ctx) (types.Status, error) {
	s := types.Status(strings.ToUpper(c.Query("status")))
	if s != "" && !s.Valid() {
		return "", apperr.Validation("invalid status %q", s)
	}
	return s, nil
}

func serverFilter(c *fiber.Ctx, opts types.ListOptions) (types.ServerFilter, error) {
	f := types.ServerFilter{ListOptions: opts}
	f.RDBMSType = types.RDBMSType(strings.ToUpper(c.Query("rdbmsType")))
	if f.RDBMSType != "" && !f.RDBMSType.Valid() {
		return f, apperr.Validation("invalid rdbmsType %q", f.RDBMSType)
	}
	var err error
	f.Status, err = statusQuery(c)
	return f, err
}

func databaseFilter(c *fiber.Ctx, opts types.ListOptions) (types.DatabaseFilter, error) {
	f := types.DatabaseFilter{ListOptions: opts}
	var err error
	if f.ServerID, err = idQuery(c, "serverId"); err != nil {
		return f, err
	}
	f.Status, err = statusQuery(c)
	return f, err
}

func tableFilter(c *fiber.Ctx, opts types.ListOptions) (types.TableFilter, error) {
	f := types.TableFilter{ListOptions: opts}
	var err error
	if f.DatabaseID, err = idQuery(c, "databaseId"); err != nil {
		return f, err
	}
	f.TableType = types.TableType(strings.ToUpper(c.Query("tableType")))
	if f.TableType != "" && !f.TableType.Valid() {
		return f, apperr.Validation("invalid tableType %q", f.TableType)
	}
	f.Status, err = statusQuery(c)
	return f, err
}

func elementFilter(c *fiber.Ctx, opts types.ListOptions) (types.ElementFilter, error) {
	f := types.ElementFilter{ListOptions: opts}
	var err error
	if f.TableID, err = idQuery(c, "tableId"); err != nil {
		return f, err
	}
	if f.IsPrimaryKey, err = boolQuery(c, "isPrimaryKey"); err != nil {
		return f, err
	}
	f.IsForeignKey, err = boolQuery(c, "isForeignKey")
	return f, err
}

func abbreviationFilter(c *fiber.Ctx, opts types.ListOptions) (types.AbbreviationFilter, error) {
	f := types.AbbreviationFilter{ListOptions: opts, Source: c.Query("source"), Category: c.Query("category")}
	var err error
	f.IsPrimeClass, err = boolQuery(c, "isPrimeClass")
	return f, err
}

func userFilter(c *fiber.Ctx, opts types.ListOptions) (types.UserFilter, error) {
	f := types.UserFilter{ListOptions: opts}
	if raw := c.Query("role"); raw != "" {
		role, ok := auth.ParseRole(raw)
		if !ok {
			return f, apperr.Validation("invalid role %q", raw)
		}
		f.Role = role
	}
	var err error
	f.IsActive, err = boolQuery(c, "isActive")
	return f, err
}

func auditFilter(c *fiber.Ctx, opts types.ListOptions) (types.AuditFilter, error) {
	f := types.AuditFilter{
		ListOptions: opts,
		EntityType:  types.EntityType(strings.ToUpper(c.Query("entityType"))),
		Action:      types.AuditAction(strings.ToUpper(c.Query("action"))),
	}
	var err error
	if f.EntityID, err = idQuery(c, "entityId"); err != nil {
		return f, err
	}
	if f.UserID, err = idQuery(c, "userId"); err != nil {
		return f, err
	}
	if f.From, err = timeQuery(c, "from"); err != nil {
		return f, err
	}
	f.To, err = timeQuery(c, "to")
	return f, err
}
