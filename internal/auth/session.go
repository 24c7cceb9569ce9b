// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is how long a session survives without activity.
const DefaultSessionTTL = 24 * time.Hour

// Session is a server-side login record referenced by an opaque cookie token.
type Session struct {
	ID        ulid.ULID
	TokenHash string
	// User is copied at creation and only refreshed by regeneration.
	User       UserSnapshot
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewSession creates a validated Session expiring ttl after now.
// UserAgent and IPAddress are optional and may be empty.
func NewSession(user UserSnapshot, tokenHash, userAgent, ipAddress string, now time.Time, ttl time.Duration) (*Session, error) {
	if user.ID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}

	return &Session{
		ID:         ulid.Make(),
		TokenHash:  tokenHash,
		User:       user,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpiredAt returns true if the session is no longer valid at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Touch records activity and moves the expiry forward.
	Touch(ctx context.Context, session *Session, lastSeen, expiresAt time.Time) error

	// Delete removes a session. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, session *Session) error

	// DeleteExpired removes sessions expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
