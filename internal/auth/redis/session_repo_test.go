// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firrel/regdemo/internal/auth"
	authredis "github.com/firrel/regdemo/internal/auth/redis"
)

// setupRepo returns a repository on a unique key prefix, skipping when no
// Redis is reachable. REDIS_ADDR overrides localhost:6379.
func setupRepo(t *testing.T) (*authredis.SessionRepository, *goredis.Client) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	prefix := "regdemo-test:" + ulid.Make().String() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})
	return authredis.NewSessionRepository(client, prefix), client
}

func newSession(t *testing.T, ttl time.Duration) *auth.Session {
	t.Helper()
	user := auth.UserSnapshot{ID: ulid.Make(), Name: "Ada", Email: "ada@example.com", Color: "#1A2B3C"}
	s, err := auth.NewSession(user, auth.HashToken(ulid.Make().String()), "ua", "127.0.0.1",
		time.Now().UTC().Truncate(time.Millisecond), ttl)
	require.NoError(t, err)
	return s
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)
	s := newSession(t, time.Hour)

	require.NoError(t, repo.Create(ctx, s))
	require.Error(t, repo.Create(ctx, s), "token hash collision must fail")

	got, err := repo.GetByTokenHash(ctx, s.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.User, got.User)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	later := s.LastSeenAt.Add(time.Minute)
	require.NoError(t, repo.Touch(ctx, got, later, later.Add(time.Hour)))

	got, err = repo.GetByTokenHash(ctx, s.TokenHash)
	require.NoError(t, err)
	assert.True(t, later.Equal(got.LastSeenAt))

	require.NoError(t, repo.Delete(ctx, s))
	assert.ErrorIs(t, repo.Delete(ctx, s), auth.ErrNotFound)
	assert.ErrorIs(t, repo.Touch(ctx, s, later, later.Add(time.Hour)), auth.ErrNotFound)

	_, err = repo.GetByTokenHash(ctx, s.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionRepository_KeyExpiresWithSession(t *testing.T) {
	ctx := context.Background()
	repo, client := setupRepo(t)
	s := newSession(t, time.Hour)

	require.NoError(t, repo.Create(ctx, s))

	keys, err := client.Keys(ctx, "regdemo-test:*"+s.TokenHash).Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	ttl, err := client.TTL(ctx, keys[0]).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	n, err := repo.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, repo.Ping(ctx))
}
