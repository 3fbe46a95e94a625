package catalog

import (
	"context"
	"database/sql"
	"net/mail"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/effects"
	"github.com/schemajeli/schemajeli/internal/types"
)

var userMeta = entityMeta{
	Type:  types.EntityUser,
	Label: "user",
	Table: database.TableUsers,
	Columns: []string{
		"id", "username", "email", "password_hash", "first_name", "last_name", "role",
		"is_active", "last_login_at", "created_at", "updated_at", "deleted_at",
	},
	SearchColumns: []string{"username", "email", "first_name", "last_name"},
	Sortable: map[string]string{
		"username":    "username",
		"email":       "email",
		"role":        "role",
		"lastLoginAt": "last_login_at",
		"createdAt":   "created_at",
	},
	DefaultSort: "username",
	TypeColumn:  "role",
}

var _ auth.UserStore = (*Service)(nil)

func scanUser(row rowScanner) (*types.User, error) {
	var (
		u         types.User
		lastLogin sql.NullTime
		deleted   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	u.LastLoginAt = nullTime(lastLogin)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.DeletedAt = nullTime(deleted)
	return &u, nil
}

func userValues(u *types.User) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"role":          string(u.Role),
		"is_active":     u.IsActive,
		"last_login_at": timeArg(u.LastLoginAt),
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
		"deleted_at":    timeArg(u.DeletedAt),
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("invalid email %q", email)
	}
	return email, nil
}

func parseRole(role string) (types.Role, error) {
	if strings.TrimSpace(role) == "" {
		return "", apperr.Validation("role is required")
	}
	r, ok := auth.ParseRole(role)
	if !ok {
		return "", apperr.Validation("invalid role %q", role)
	}
	return r, nil
}

// revokeSessions ends every session of a user inside tx.
func (s *Service) revokeSessions(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := database.Exec(ctx, tx, s.qb.Delete(database.TableSessions).Where(squirrel.Eq{"user_id": userID}))
	if err != nil {
		return apperr.Unexpected(err, "failed to revoke sessions")
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id string, includeDeleted bool) (*types.User, error) {
	return fetchByID(ctx, s, s.store.DB(), userMeta, id, includeDeleted, false, scanUser)
}

// GetUserByID returns a non-deleted user.
func (s *Service) GetUserByID(ctx context.Context, id string) (*types.User, error) {
	return s.GetUser(ctx, id, false)
}

// FindUserForLogin looks a non-deleted user up by username or email.
func (s *Service) FindUserForLogin(ctx context.Context, identifier string) (*types.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	u, err := fetchOne(ctx, s, s.store.DB(), userMeta,
		squirrel.Or{squirrel.Eq{"username": identifier}, squirrel.Eq{"email": identifier}}, scanUser)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user %s not found", identifier)
	}
	return u, nil
}

func (s *Service) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := database.Exec(ctx, s.store.DB(), s.qb.Update(userMeta.Table).
		Set("last_login_at", at.UTC()).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return apperr.Unexpected(err, "failed to record last login")
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, f types.UserFilter) (*types.Page[types.User], error) {
	where := squirrel.And{}
	if f.Role != "" {
		where = append(where, squirrel.Eq{"role": string(f.Role)})
	}
	if f.IsActive != nil {
		where = append(where, squirrel.Eq{"is_active": *f.IsActive})
	}
	return listPage(ctx, s, userMeta, where, f.ListOptions, scanUser)
}

func (s *Service) CreateUser(ctx context.Context, actor types.Actor, in types.CreateUserInput) (*types.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if err := required("username", username); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := required("password", in.Password); err != nil {
		return nil, err
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to hash password")
	}

	now := s.timestamp()
	u := &types.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		if err := s.ensureUnique(ctx, tx, userMeta, "username", u.Username, nil, ""); err != nil {
			return nil, err
		}
		if err := s.ensureUnique(ctx, tx, userMeta, "email", u.Email, nil, ""); err != nil {
			return nil, err
		}
		if _, err := database.Exec(ctx, tx, s.qb.Insert(userMeta.Table).SetMap(userValues(u))); err != nil {
			return nil, storeErr(err, "failed to create user %q", u.Username)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityUser, u.ID, types.ActionCreate, u); err != nil {
			return nil, err
		}
		return s.sideEffects(userMeta, u.ID, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser patches a user. Deactivating a user ends their sessions; an
// actor cannot deactivate their own account.
func (s *Service) UpdateUser(ctx context.Context, actor types.Actor, id string, in types.UpdateUserInput) (*types.User, error) {
	var (
		email *string
		role  *types.Role
		hash  string
	)
	if in.Email != nil {
		e, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		email = &e
	}
	if in.Role != nil {
		r, err := parseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		role = &r
	}
	if in.Password != nil {
		h, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, apperr.Wrap(err, "failed to hash password")
		}
		hash = h
	}
	if in.IsActive != nil && !*in.IsActive && actor.UserID == id {
		return nil, apperr.Conflict("you cannot deactivate your own account")
	}

	var updated *types.User
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		before, err := fetchByID(ctx, s, tx, userMeta, id, false, true, scanUser)
		if err != nil {
			return nil, err
		}

		after := *before
		if email != nil && *email != before.Email {
			if err := s.ensureUnique(ctx, tx, userMeta, "email", *email, nil, id); err != nil {
				return nil, err
			}
			after.Email = *email
		}
		if in.FirstName != nil {
			after.FirstName = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			after.LastName = strings.TrimSpace(*in.LastName)
		}
		if role != nil {
			after.Role = *role
		}
		if in.IsActive != nil {
			after.IsActive = *in.IsActive
		}
		if hash != "" {
			after.PasswordHash = hash
		}
		after.UpdatedAt = s.timestamp()

		if _, err := database.Exec(ctx, tx, s.qb.Update(userMeta.Table).
			SetMap(userValues(&after)).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to update user %q", after.Username)
		}
		if before.IsActive && !after.IsActive {
			if err := s.revokeSessions(ctx, tx, id); err != nil {
				return nil, err
			}
		}
		if err := s.auditUpdate(ctx, tx, actor, types.EntityUser, id, before, &after); err != nil {
			return nil, err
		}
		updated = &after
		return s.sideEffects(userMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangePassword replaces the actor's own password after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, actor types.Actor, current, next string) error {
	if err := required("currentPassword", current); err != nil {
		return err
	}
	if err := required("newPassword", next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return apperr.Wrap(err, "failed to hash password")
	}

	return s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		before, err := fetchByID(ctx, s, tx, userMeta, actor.UserID, false, true, scanUser)
		if err != nil {
			return nil, err
		}
		ok, err := auth.VerifyPassword(before.PasswordHash, current)
		if err != nil {
			return nil, apperr.Unexpected(err, "failed to verify password")
		}
		if !ok {
			return nil, apperr.Validation("current password is incorrect")
		}

		after := *before
		after.PasswordHash = hash
		after.UpdatedAt = s.timestamp()
		if _, err := database.Exec(ctx, tx, s.qb.Update(userMeta.Table).
			Set("password_hash", hash).
			Set("updated_at", after.UpdatedAt).
			Where(squirrel.Eq{"id": actor.UserID})); err != nil {
			return nil, storeErr(err, "failed to change password")
		}
		if err := s.auditUpdate(ctx, tx, actor, types.EntityUser, actor.UserID, before, &after); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// DeleteUser soft-deletes a user, deactivates the account and ends its
// sessions. An actor cannot delete their own account.
func (s *Service) DeleteUser(ctx context.Context, actor types.Actor, id string) (*types.User, error) {
	if actor.UserID != "" && actor.UserID == id {
		return nil, apperr.Conflict("you cannot delete your own account")
	}

	var deleted *types.User
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		u, err := fetchByID(ctx, s, tx, userMeta, id, false, true, scanUser)
		if err != nil {
			return nil, err
		}

		now := s.timestamp()
		u.DeletedAt = &now
		u.UpdatedAt = now
		u.IsActive = false
		if _, err := database.Exec(ctx, tx, s.qb.Update(userMeta.Table).
			Set("deleted_at", now).
			Set("updated_at", now).
			Set("is_active", false).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to delete user %q", u.Username)
		}
		if err := s.revokeSessions(ctx, tx, id); err != nil {
			return nil, err
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityUser, id, types.ActionDelete, u); err != nil {
			return nil, err
		}
		deleted = u
		return s.sideEffects(userMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Service) RestoreUser(ctx context.Context, actor types.Actor, id string) (*types.User, error) {
	var restored *types.User
	err := s.mutate(ctx, func(tx *sql.Tx) ([]effects.Effect, error) {
		u, err := fetchByID(ctx, s, tx, userMeta, id, true, true, scanUser)
		if err != nil {
			return nil, err
		}
		if u.DeletedAt == nil {
			return nil, apperr.Conflict("user %q is not deleted", u.Username)
		}
		if err := s.ensureUnique(ctx, tx, userMeta, "username", u.Username, nil, id); err != nil {
			return nil, err
		}
		if err := s.ensureUnique(ctx, tx, userMeta, "email", u.Email, nil, id); err != nil {
			return nil, err
		}

		now := s.timestamp()
		u.DeletedAt = nil
		u.UpdatedAt = now
		u.IsActive = true
		if _, err := database.Exec(ctx, tx, s.qb.Update(userMeta.Table).
			Set("deleted_at", nil).
			Set("updated_at", now).
			Set("is_active", true).
			Where(squirrel.Eq{"id": id})); err != nil {
			return nil, storeErr(err, "failed to restore user %q", u.Username)
		}
		if err := s.writeAudit(ctx, tx, actor, types.EntityUser, id, types.ActionRestore, u); err != nil {
			return nil, err
		}
		restored = u
		return s.sideEffects(userMeta, id, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *Service) UserStats(ctx context.Context) (*types.Stats, error) {
	return s.entityStats(ctx, userMeta, squirrel.Eq{"is_active": true})
}
