package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/types"
)

const (
	localUser  = "user"
	localToken = "token"
)

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate resolves the bearer token to a user and stores it on the
// request.
func (s *Server) authenticate(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return apperr.Authentication("missing bearer token")
	}
	user, err := s.auth.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(localUser, user)
	c.Locals(localToken, token)
	return c.Next()
}

// requirePermission rejects the request before any handler work when the
// user's role lacks a permission.
func requirePermission(perms ...auth.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil {
			return apperr.Authentication("authentication required")
		}
		if err := auth.Check(string(user.Role), perms...); err != nil {
			return err
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *types.User {
	user, _ := c.Locals(localUser).(*types.User)
	return user
}

func actor(c *fiber.Ctx) types.Actor {
	user := currentUser(c)
	if user == nil {
		return types.Actor{}
	}
	return types.Actor{UserID: user.ID, Username: user.Username, Role: user.Role}
}
