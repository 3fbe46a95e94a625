package auth

import (
	"context"
	"time"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/logger"
	"github.com/schemajeli/schemajeli/internal/types"
)

// UserStore is the slice of the user catalog the authenticator needs.
type UserStore interface {
	FindUserForLogin(ctx context.Context, identifier string) (*types.User, error)
	GetUserByID(ctx context.Context, id string) (*types.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// PasswordVerifier replaces the local bcrypt check, e.g. with an LDAP bind.
type PasswordVerifier interface {
	Verify(username, password string) error
}

type Authenticator struct {
	users    UserStore
	sessions *Sessions
	external PasswordVerifier
	logger   *logger.Logger
}

func NewAuthenticator(users UserStore, sessions *Sessions, external PasswordVerifier, log *logger.Logger) *Authenticator {
	return &Authenticator{users: users, sessions: sessions, external: external, logger: log}
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *types.User `json:"user"`
}

// Login verifies credentials and issues a session. Unknown users, wrong
// passwords and inactive accounts all fail with an authentication error.
func (a *Authenticator) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	user, err := a.users.FindUserForLogin(ctx, identifier)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			a.logger.Warnf("Login failed for %q: unknown user", identifier)
			return nil, apperr.Authentication("invalid credentials")
		}
		return nil, err
	}

	if !user.IsActive || user.DeletedAt != nil {
		a.logger.Warnf("Login refused for %q: account disabled", user.Username)
		return nil, apperr.Authentication("account is disabled")
	}

	if a.external != nil {
		if err := a.external.Verify(user.Username, password); err != nil {
			a.logger.Warnf("Directory login failed for %q: %v", user.Username, err)
			return nil, apperr.Wrap(err, "directory authentication failed")
		}
	} else {
		ok, err := VerifyPassword(user.PasswordHash, password)
		if err != nil {
			return nil, apperr.Unexpected(err, "failed to verify password")
		}
		if !ok {
			a.logger.Warnf("Login failed for %q: bad password", user.Username)
			return nil, apperr.Authentication("invalid credentials")
		}
	}

	token, expiresAt, err := a.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to create session")
	}

	now := time.Now().UTC()
	if err := a.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		a.logger.Warnf("Failed to record last login for %s: %v", user.Username, err)
	} else {
		user.LastLoginAt = &now
	}

	a.logger.Infof("User %s logged in", user.Username)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to an active user.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*types.User, error) {
	userID, err := a.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to resolve session")
	}

	user, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Authentication("invalid or expired session")
		}
		return nil, err
	}
	if !user.IsActive || user.DeletedAt != nil {
		return nil, apperr.Authentication("account is disabled")
	}
	return user, nil
}

func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if err := a.sessions.Revoke(ctx, token); err != nil {
		return apperr.Unexpected(err, "failed to end session")
	}
	return nil
}

// RevokeUser ends every session of a user.
func (a *Authenticator) RevokeUser(ctx context.Context, userID string) error {
	return a.sessions.RevokeUser(ctx, userID)
}
