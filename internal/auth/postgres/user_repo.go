// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/firrel/regdemo/internal/auth"
)

const userColumns = `id, name, email, password_hash, color, verification_state,
	verification_token_hash, verification_expires_at, new_email,
	reset_token_hash, reset_expires_at, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	var verifyHash *string
	var verifyExpiry *time.Time
	if user.Verification != nil {
		verifyHash = &user.Verification.Hash
		verifyExpiry = &user.Verification.ExpiresAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, name, email, password_hash, color, verification_state,
			verification_token_hash, verification_expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Color,
		string(user.State),
		verifyHash,
		verifyExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("USER_EMAIL_TAKEN").With("email", user.Email).Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, auth.NormalizeEmail(email))

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), hash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeVerification marks the holder of a live verification token verified
// and promotes a staged email in one conditional UPDATE, so a token is
// consumed at most once.
func (r *UserRepository) ConsumeVerification(ctx context.Context, tokenHash string, now time.Time) (auth.UserSnapshot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET email = COALESCE(new_email, email),
		    new_email = NULL,
		    verification_state = 'verified',
		    verification_token_hash = NULL,
		    verification_expires_at = NULL,
		    updated_at = $2
		WHERE verification_token_hash = $1 AND verification_expires_at > $2
		RETURNING id, name, email, color
	`, tokenHash, now)

	snap, err := scanSnapshot(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return auth.UserSnapshot{}, oops.Code("VERIFICATION_TOKEN_INVALID").Wrap(auth.ErrNotFound)
	case isUniqueViolation(err):
		return auth.UserSnapshot{}, oops.Code("USER_EMAIL_TAKEN").
			With("operation", "promote staged email").
			Wrap(auth.ErrEmailTaken)
	case err != nil:
		return auth.UserSnapshot{}, oops.Code("VERIFICATION_CONSUME_FAILED").
			With("operation", "consume verification token").
			Wrap(err)
	}
	return snap, nil
}

// SetResetToken stores a reset token, replacing any outstanding one.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, reset auth.Token) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id.String(), reset.Hash, reset.ExpiresAt)
	if err != nil {
		return oops.Code("RESET_TOKEN_SET_FAILED").
			With("operation", "store reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeReset stores passwordHash for the holder of a live reset token and
// clears the token.
func (r *UserRepository) ConsumeReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (ulid.ULID, error) {
	var idStr string
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires_at = NULL,
		    updated_at = $3
		WHERE reset_token_hash = $1 AND reset_expires_at > $3
		RETURNING id
	`, tokenHash, passwordHash, now).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	return id, nil
}

// ApplyProfilePatch runs the UPDATE for the patch's shape.
func (r *UserRepository) ApplyProfilePatch(ctx context.Context, id ulid.ULID, patch auth.ProfilePatch, now time.Time) (auth.UserSnapshot, error) {
	query, args := BuildProfileUpdate(id, patch, now)

	snap, err := scanSnapshot(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.UserSnapshot{}, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return auth.UserSnapshot{}, oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "apply profile patch").
			With("id", id.String()).
			With("shape", patch.Shape().String()).
			Wrap(err)
	}
	return snap, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user                      auth.User
		idStr, state              string
		verifyHash, resetHash     *string
		verifyExpiry, resetExpiry *time.Time
		newEmail                  *string
	)
	err := row.Scan(
		&idStr,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Color,
		&state,
		&verifyHash,
		&verifyExpiry,
		&newEmail,
		&resetHash,
		&resetExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	user.State, err = auth.ParseVerificationState(state)
	if err != nil {
		return nil, err
	}
	user.Verification = tokenFrom(verifyHash, verifyExpiry)
	user.Reset = tokenFrom(resetHash, resetExpiry)
	user.NewEmail = newEmail
	return &user, nil
}

func scanSnapshot(row pgx.Row) (auth.UserSnapshot, error) {
	var snap auth.UserSnapshot
	var idStr string
	if err := row.Scan(&idStr, &snap.Name, &snap.Email, &snap.Color); err != nil {
		return auth.UserSnapshot{}, err //nolint:wrapcheck // callers wrap with operation context
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return auth.UserSnapshot{}, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	snap.ID = id
	return snap, nil
}

func tokenFrom(hash *string, expiresAt *time.Time) *auth.Token {
	if hash == nil || expiresAt == nil {
		return nil
	}
	return &auth.Token{Hash: *hash, ExpiresAt: *expiresAt}
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
