package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/logger"
)

// Sessions stores opaque bearer tokens. Only the SHA-256 of a token is
// persisted, so a leaked sessions table cannot be replayed.
type Sessions struct {
	store  *database.Store
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

func NewSessions(store *database.Store, ttl time.Duration, log *logger.Logger) *Sessions {
	return &Sessions{store: store, ttl: ttl, logger: log, now: func() time.Time { return time.Now().UTC() }}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create issues a new token for userID and returns it with its expiry.
func (s *Sessions) Create(ctx context.Context, userID string) (string, time.Time, error) {
	token, err := newToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	_, err = database.Exec(ctx, s.store.DB(), s.store.Builder().Insert(database.TableSessions).
		Columns("token_hash", "user_id", "expires_at", "created_at").
		Values(hashToken(token), userID, expiresAt, now))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}
	return token, expiresAt, nil
}

// Resolve returns the user id owning token, or an authentication error when
// the token is unknown or expired.
func (s *Sessions) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.Authentication("missing bearer token")
	}

	row, err := database.QueryRow(ctx, s.store.DB(), s.store.Builder().
		Select("user_id", "expires_at").
		From(database.TableSessions).
		Where(squirrel.Eq{"token_hash": hashToken(token)}))
	if err != nil {
		return "", err
	}

	var userID string
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperr.Authentication("invalid or expired session")
		}
		return "", fmt.Errorf("failed to look up session: %w", err)
	}

	if !expiresAt.After(s.now()) {
		if err := s.Revoke(ctx, token); err != nil {
			s.logger.Warnf("Failed to revoke expired session: %v", err)
		}
		return "", apperr.Authentication("invalid or expired session")
	}
	return userID, nil
}

func (s *Sessions) Revoke(ctx context.Context, token string) error {
	_, err := database.Exec(ctx, s.store.DB(), s.store.Builder().
		Delete(database.TableSessions).
		Where(squirrel.Eq{"token_hash": hashToken(token)}))
	return err
}

// RevokeUser drops every session of a user, used when the account is
// deactivated or deleted.
func (s *Sessions) RevokeUser(ctx context.Context, userID string) error {
	_, err := database.Exec(ctx, s.store.DB(), s.store.Builder().
		Delete(database.TableSessions).
		Where(squirrel.Eq{"user_id": userID}))
	return err
}

// PurgeExpired removes expired sessions and reports how many were dropped.
func (s *Sessions) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := database.Exec(ctx, s.store.DB(), s.store.Builder().
		Delete(database.TableSessions).
		Where(squirrel.LtOrEq{"expires_at": s.now()}))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
