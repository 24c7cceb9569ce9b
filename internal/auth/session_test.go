// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/firrel/regdemo/internal/auth"
	"github.com/firrel/regdemo/internal/auth/mocks"
	"github.com/firrel/regdemo/pkg/errutil"
)

func testSnapshot() auth.UserSnapshot {
	return auth.UserSnapshot{
		ID:    ulid.Make(),
		Name:  "Ada",
		Email: "ada@example.com",
		Color: "#1A2B3C",
	}
}

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	user := testSnapshot()

	t.Run("valid", func(t *testing.T) {
		s, err := auth.NewSession(user, "hash", "curl/8", "10.0.0.1", now, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, user, s.User)
		assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
		assert.Equal(t, now, s.CreatedAt)
		assert.Equal(t, now, s.LastSeenAt)
		assert.False(t, s.IsExpiredAt(now.Add(59*time.Minute)))
		assert.True(t, s.IsExpiredAt(now.Add(time.Hour)))
	})

	tests := []struct {
		name string
		user auth.UserSnapshot
		hash string
		ttl  time.Duration
		code string
	}{
		{"zero user", auth.UserSnapshot{}, "hash", time.Hour, "SESSION_INVALID_USER"},
		{"empty hash", user, "", time.Hour, "SESSION_INVALID_HASH"},
		{"non-positive ttl", user, "hash", 0, "SESSION_INVALID_EXPIRY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewSession(tt.user, tt.hash, "", "", now, tt.ttl)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T, clock *fixedClock, logger *slog.Logger) (*auth.SessionManager, *mocks.MockSessionRepository) {
	t.Helper()
	repo := mocks.NewMockSessionRepository(t)
	opts := []auth.SessionManagerOption{
		auth.WithSessionTTL(time.Hour),
		auth.WithSessionClock(clock.Now),
	}
	if logger != nil {
		opts = append(opts, auth.WithSessionLogger(logger))
	}
	m, err := auth.NewSessionManager(repo, opts...)
	require.NoError(t, err)
	return m, repo
}

func TestNewSessionManager_RequiresRepository(t *testing.T) {
	_, err := auth.NewSessionManager(nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_MANAGER_INVALID")
}

func TestSessionManager_Start(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	m, repo := newTestManager(t, clock, nil)
	user := testSnapshot()

	var stored *auth.Session
	repo.On("Create", ctx, mock.AnythingOfType("*auth.Session")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*auth.Session) }).
		Return(nil)

	session, token, err := m.Start(ctx, user, "ua", "1.2.3.4")
	require.NoError(t, err)
	assert.Same(t, stored, session)
	assert.Equal(t, auth.HashToken(token), session.TokenHash)
	assert.NotEqual(t, token, session.TokenHash)
	assert.Equal(t, clock.now.Add(time.Hour), session.ExpiresAt)
	assert.Equal(t, "ua", session.UserAgent)
	assert.Equal(t, "1.2.3.4", session.IPAddress)
	assert.Equal(t, time.Hour, m.TTL())
}

func TestSessionManager_Start_PersistFailure(t *testing.T) {
	ctx := context.Background()
	m, repo := newTestManager(t, &fixedClock{now: time.Now()}, nil)

	repo.On("Create", ctx, mock.Anything).Return(errors.New("db down"))

	_, _, err := m.Start(ctx, testSnapshot(), "", "")
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "persist session")
}

func TestSessionManager_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token is not found", func(t *testing.T) {
		m, _ := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		_, err := m.Resolve(ctx, "")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unknown token is not found", func(t *testing.T) {
		m, repo := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		repo.On("GetByTokenHash", ctx, auth.HashToken("nope")).Return(nil, auth.ErrNotFound)

		_, err := m.Resolve(ctx, "nope")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("live session slides expiry", func(t *testing.T) {
		clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
		m, repo := newTestManager(t, clock, nil)
		session, err := auth.NewSession(testSnapshot(), auth.HashToken("tok"), "", "", clock.now, time.Hour)
		require.NoError(t, err)

		clock.Advance(30 * time.Minute)
		repo.On("GetByTokenHash", ctx, auth.HashToken("tok")).Return(session, nil)
		repo.On("Touch", ctx, session, clock.now, clock.now.Add(time.Hour)).Return(nil)

		got, err := m.Resolve(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, clock.now.Add(time.Hour), got.ExpiresAt)
		assert.Equal(t, clock.now, got.LastSeenAt)
	})

	t.Run("expired session is deleted and not found", func(t *testing.T) {
		clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
		m, repo := newTestManager(t, clock, nil)
		session, err := auth.NewSession(testSnapshot(), auth.HashToken("tok"), "", "", clock.now, time.Hour)
		require.NoError(t, err)

		clock.Advance(time.Hour)
		repo.On("GetByTokenHash", ctx, auth.HashToken("tok")).Return(session, nil)
		repo.On("Delete", ctx, session).Return(nil)

		_, err = m.Resolve(ctx, "tok")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")
	})

	t.Run("store failure is not a miss", func(t *testing.T) {
		m, repo := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		repo.On("GetByTokenHash", ctx, mock.Anything).Return(nil, errors.New("db down"))

		_, err := m.Resolve(ctx, "tok")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("touch failure is logged and session still valid", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
		m, repo := newTestManager(t, clock, logger)
		session, err := auth.NewSession(testSnapshot(), auth.HashToken("tok"), "", "", clock.now, time.Hour)
		require.NoError(t, err)
		originalExpiry := session.ExpiresAt

		repo.On("GetByTokenHash", ctx, mock.Anything).Return(session, nil)
		repo.On("Touch", ctx, session, mock.Anything, mock.Anything).Return(errors.New("db down"))

		got, err := m.Resolve(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, originalExpiry, got.ExpiresAt)
		assert.Contains(t, buf.String(), "failed to refresh session expiry")
	})
}

func TestSessionManager_Destroy(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token is a no-op", func(t *testing.T) {
		m, _ := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		require.NoError(t, m.Destroy(ctx, ""))
	})

	t.Run("unknown token is a no-op", func(t *testing.T) {
		m, repo := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		repo.On("GetByTokenHash", ctx, mock.Anything).Return(nil, auth.ErrNotFound)
		require.NoError(t, m.Destroy(ctx, "tok"))
	})

	t.Run("deletes the session", func(t *testing.T) {
		m, repo := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		session := &auth.Session{ID: ulid.Make()}
		repo.On("GetByTokenHash", ctx, auth.HashToken("tok")).Return(session, nil)
		repo.On("Delete", ctx, session).Return(nil)
		require.NoError(t, m.Destroy(ctx, "tok"))
	})

	t.Run("concurrent delete is not an error", func(t *testing.T) {
		m, repo := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		session := &auth.Session{ID: ulid.Make()}
		repo.On("GetByTokenHash", ctx, mock.Anything).Return(session, nil)
		repo.On("Delete", ctx, session).Return(auth.ErrNotFound)
		require.NoError(t, m.Destroy(ctx, "tok"))
	})

	t.Run("delete failure", func(t *testing.T) {
		m, repo := newTestManager(t, &fixedClock{now: time.Now()}, nil)
		session := &auth.Session{ID: ulid.Make()}
		repo.On("GetByTokenHash", ctx, mock.Anything).Return(session, nil)
		repo.On("Delete", ctx, session).Return(errors.New("db down"))

		err := m.Destroy(ctx, "tok")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_DESTROY_FAILED")
	})
}

func TestSessionManager_Regenerate(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	m, repo := newTestManager(t, clock, nil)

	old, err := auth.NewSession(testSnapshot(), auth.HashToken("old"), "ua", "10.0.0.2", clock.now, time.Hour)
	require.NoError(t, err)
	updated := old.User
	updated.Name = "Ada L."

	repo.On("Delete", ctx, old).Return(nil).Once()
	repo.On("Create", ctx, mock.AnythingOfType("*auth.Session")).Return(nil).Once()

	next, token, err := m.Regenerate(ctx, old, updated)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, next.ID)
	assert.NotEqual(t, "old", token)
	assert.Equal(t, "Ada L.", next.User.Name)
	assert.Equal(t, "ua", next.UserAgent)
	assert.Equal(t, "10.0.0.2", next.IPAddress)
}

func TestSessionManager_Prune(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	m, repo := newTestManager(t, clock, nil)

	repo.On("DeleteExpired", ctx, clock.now).Return(int64(3), nil).Once()
	n, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	repo.On("DeleteExpired", ctx, clock.now).Return(int64(0), errors.New("db down")).Once()
	_, err = m.Prune(ctx)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_PRUNE_FAILED")
}
