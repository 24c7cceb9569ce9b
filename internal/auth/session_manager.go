// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/firrel/regdemo/pkg/errutil"
)

// SessionManager issues, resolves and retires sessions. Expiry slides: every
// successful resolution pushes it ttl into the future.
type SessionManager struct {
	repo   SessionRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionTTL sets the inactivity timeout.
func WithSessionTTL(ttl time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSessionClock overrides the time source.
func WithSessionClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSessionLogger sets the logger for best-effort failures.
func WithSessionLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewSessionManager creates a SessionManager backed by repo.
func NewSessionManager(repo SessionRepository, opts ...SessionManagerOption) (*SessionManager, error) {
	if repo == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("session repository is required")
	}
	m := &SessionManager{
		repo:   repo,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the inactivity timeout.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Start creates and persists a session for user.
// Returns the session and the plaintext token for the cookie.
func (m *SessionManager) Start(ctx context.Context, user UserSnapshot, userAgent, ipAddress string) (*Session, string, error) {
	token, hash, err := GenerateToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_START_FAILED").With("operation", "generate token").Wrap(err)
	}

	session, err := NewSession(user, hash, userAgent, ipAddress, m.now(), m.ttl)
	if err != nil {
		return nil, "", oops.Code("SESSION_START_FAILED").With("operation", "new session").Wrap(err)
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_START_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return session, token, nil
}

// Resolve returns the live session for token and slides its expiry.
// Absent, unknown and expired tokens yield an error matching ErrNotFound.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrNotFound)
	}

	session, err := m.repo.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(err)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").With("operation", "get session by token hash").Wrap(err)
	}

	now := m.now()
	if session.IsExpiredAt(now) {
		if delErr := m.repo.Delete(ctx, session); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			errutil.LogErrorContext(ctx, m.logger, "failed to delete expired session", delErr)
		}
		return nil, oops.Code("SESSION_EXPIRED").With("session_id", session.ID.String()).Wrap(ErrNotFound)
	}

	expiresAt := now.Add(m.ttl)
	if err := m.repo.Touch(ctx, session, now, expiresAt); err != nil {
		// Activity tracking is best effort; the session is still valid.
		errutil.LogErrorContext(ctx, m.logger, "failed to refresh session expiry", err)
	} else {
		session.LastSeenAt = now
		session.ExpiresAt = expiresAt
	}
	return session, nil
}

// Destroy removes the session for token. Missing tokens and sessions are not errors.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := m.repo.GetByTokenHash(ctx, HashToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").With("operation", "get session by token hash").Wrap(err)
	}

	return m.remove(ctx, session)
}

// Regenerate replaces old with a fresh session carrying user.
// The old session is removed before the new one is issued.
func (m *SessionManager) Regenerate(ctx context.Context, old *Session, user UserSnapshot) (*Session, string, error) {
	var userAgent, ipAddress string
	if old != nil {
		if err := m.remove(ctx, old); err != nil {
			return nil, "", oops.Code("SESSION_REGENERATE_FAILED").With("operation", "remove old session").Wrap(err)
		}
		userAgent, ipAddress = old.UserAgent, old.IPAddress
	}

	session, token, err := m.Start(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, "", oops.Code("SESSION_REGENERATE_FAILED").With("operation", "start new session").Wrap(err)
	}
	return session, token, nil
}

// Prune removes expired sessions and returns how many were deleted.
func (m *SessionManager) Prune(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}

func (m *SessionManager) remove(ctx context.Context, session *Session) error {
	if err := m.repo.Delete(ctx, session); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}
