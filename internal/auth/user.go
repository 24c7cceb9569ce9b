// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// VerificationState tracks whether a user has proven control of their email.
type VerificationState string

// Verification states.
const (
	StateUnverified VerificationState = "unverified"
	StateVerified   VerificationState = "verified"
	// StatePending marks an account whose staged email change awaits
	// confirmation. Login is refused until then.
	StatePending VerificationState = "pending"
)

// Valid reports whether s is a known state.
func (s VerificationState) Valid() bool {
	switch s {
	case StateUnverified, StateVerified, StatePending:
		return true
	}
	return false
}

// ParseVerificationState converts a stored value into a VerificationState.
func ParseVerificationState(v string) (VerificationState, error) {
	s := VerificationState(v)
	if !s.Valid() {
		return "", oops.Code("USER_INVALID_STATE").With("state", v).Errorf("unknown verification state %q", v)
	}
	return s, nil
}

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	Color        string
	State        VerificationState
	// Verification is set while an email verification is outstanding.
	Verification *Token
	// NewEmail holds an email change awaiting verification.
	NewEmail *string
	// Reset is set while a password reset is outstanding.
	Reset     *Token
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserSnapshot is the public view of a user carried in sessions and responses.
type UserSnapshot struct {
	ID    ulid.ULID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Color string    `json:"color"`
}

// NewUser creates an unverified User with an outstanding verification token.
func NewUser(name, email, passwordHash, color string, verification Token, now time.Time) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, oops.Code("USER_INVALID_NAME").Errorf("name cannot be empty")
	}
	if NormalizeEmail(email) == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if !ValidColor(color) {
		return nil, oops.Code("USER_INVALID_COLOR").With("color", color).Errorf("invalid color")
	}
	if verification.Hash == "" || verification.ExpiresAt.IsZero() {
		return nil, oops.Code("USER_INVALID_TOKEN").Errorf("verification token is required")
	}

	return &User{
		ID:           ulid.Make(),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Color:        color,
		State:        StateUnverified,
		Verification: &verification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsVerified returns true if the user may log in. A staged email change
// blocks login until the new address is confirmed.
func (u *User) IsVerified() bool {
	return u.State == StateVerified
}

// Snapshot returns the public view of the user.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Color: u.Color,
	}
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken if the email is in use.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error

	// ConsumeVerification marks the user holding the token hash as verified,
	// promoting any staged email. The token must expire after now.
	// Returns ErrNotFound when no user holds a live token and ErrEmailTaken
	// when the staged email was claimed by another account.
	ConsumeVerification(ctx context.Context, tokenHash string, now time.Time) (UserSnapshot, error)

	// SetResetToken stores a reset token, replacing any outstanding one.
	SetResetToken(ctx context.Context, id ulid.ULID, reset Token) error

	// ConsumeReset replaces the password of the user holding a live reset
	// token and clears the token. Returns ErrNotFound when no user matches.
	ConsumeReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (ulid.ULID, error)

	// ApplyProfilePatch updates the user and returns the updated public view.
	ApplyProfilePatch(ctx context.Context, id ulid.ULID, patch ProfilePatch, now time.Time) (UserSnapshot, error)
}
