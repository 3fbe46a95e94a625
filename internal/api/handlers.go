package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/types"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type profile struct {
	*types.User
	Permissions []auth.Permission `json:"permissions"`
}

type healthStatus struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	st := healthStatus{Status: "ok", Database: "ok", Time: time.Now().UTC()}
	if err := s.catalog.Store().Ping(ctx); err != nil {
		s.logger.Warnf("Health check: database unreachable: %v", err)
		st.Status = "degraded"
		st.Database = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(envelope{Status: statusError, Data: st})
	}
	return ok(c, st)
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := s.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return ok(c, result)
}

func (s *Server) logout(c *fiber.Ctx) error {
	token, _ := c.Locals(localToken).(string)
	if err := s.auth.Logout(c.UserContext(), token); err != nil {
		return err
	}
	return message(c, "logged out")
}

func (s *Server) me(c *fiber.Ctx) error {
	user := currentUser(c)
	return ok(c, profile{User: user, Permissions: auth.PermissionsFor(user.Role)})
}

func (s *Server) changePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := s.catalog.ChangePassword(c.UserContext(), actor(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return message(c, "password changed")
}

func (s *Server) listAuditLogs(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return err
	}
	f, err := auditFilter(c, opts)
	if err != nil {
		return err
	}
	page, err := s.catalog.ListAuditLogs(c.UserContext(), f)
	if err != nil {
		return err
	}
	return paged(c, page)
}

func (s *Server) search(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return apperr.Validation("query parameter q is required")
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	results, err := s.catalog.Search(c.UserContext(), q, limit)
	if err != nil {
		return err
	}
	return ok(c, results)
}
