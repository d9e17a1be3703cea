// Package token issues and verifies single-use account tokens: the
// links mailed out for account verification, password resets and email
// changes. Only a sha256 hash of the secret ever touches the database.
package token

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Purpose names what a token is allowed to do. A token verifies only
// against the purpose it was issued for.
type Purpose string

const (
	PurposeVerifyAccount Purpose = "verify_account"
	PurposeResetPassword Purpose = "reset_password"
	PurposeChangeEmail   Purpose = "change_email"
)

// Purposes lists every purpose the service accepts.
func Purposes() []Purpose {
	return []Purpose{PurposeVerifyAccount, PurposeResetPassword, PurposeChangeEmail}
}

func (p Purpose) Valid() bool {
	switch p {
	case PurposeVerifyAccount, PurposeResetPassword, PurposeChangeEmail:
		return true
	}
	return false
}

// ErrInvalidToken covers unknown, already-used and expired tokens
// alike; callers cannot distinguish them.
var ErrInvalidToken = errors.New("token: invalid or expired")

// Service stores token hashes in user_tokens. The now hook exists for
// expiry tests.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Issue creates a fresh token for the user and purpose and returns the
// plaintext secret, which is never stored. Any outstanding token for
// the same user and purpose is burned in the same transaction, so at
// most one live token exists per (user, purpose).
func (s *Service) Issue(ctx context.Context, userID int64, purpose Purpose, ttl time.Duration) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("issue token: unknown purpose %q", purpose)
	}
	secret := uuid.NewString()
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		update user_tokens
		set used_at = $1
		where user_id = $2 and purpose = $3 and used_at is null
	`, now, userID, string(purpose)); err != nil {
		return "", fmt.Errorf("burn prior tokens: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		insert into user_tokens (user_id, purpose, token_hash, expires_at, created_at)
		values ($1, $2, $3, $4, $5)
	`, userID, string(purpose), hashSecret(secret), now.Add(ttl), now); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return secret, nil
}

// Verify redeems a token. On success the token is marked used and the
// owning user id is returned. Expired tokens are burned on sight so a
// later replay cannot race the cleanup job.
func (s *Service) Verify(ctx context.Context, secret string, purpose Purpose) (int64, error) {
	now := s.now().UTC()

	var (
		id        int64
		userID    int64
		expiresAt time.Time
	)
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, expires_at
		from user_tokens
		where token_hash = $1 and purpose = $2 and used_at is null
	`, hashSecret(secret), string(purpose))
	if err := row.Scan(&id, &userID, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("verify token: %w", err)
	}

	if now.After(expiresAt) {
		if _, err := s.db.ExecContext(ctx,
			`update user_tokens set used_at = $1 where id = $2`, now, id); err != nil {
			return 0, fmt.Errorf("burn expired token: %w", err)
		}
		return 0, ErrInvalidToken
	}

	res, err := s.db.ExecContext(ctx, `
		update user_tokens set used_at = $1 where id = $2 and used_at is null
	`, now, id)
	if err != nil {
		return 0, fmt.Errorf("redeem token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Lost the race to a concurrent redeem.
		return 0, ErrInvalidToken
	}
	return userID, nil
}
