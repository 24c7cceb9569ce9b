// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

// Package redis implements auth.SessionRepository on Redis. Each session is a
// JSON value keyed by its token hash and expires natively at ExpiresAt.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/firrel/regdemo/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "regdemo:session:"

// record is the stored form of a session.
type record struct {
	ID         string    `json:"id"`
	TokenHash  string    `json:"token_hash"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	UserColor  string    `json:"user_color"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// SessionRepository stores sessions in Redis.
type SessionRepository struct {
	client goredis.Cmdable
	prefix string
}

// NewSessionRepository creates a SessionRepository. An empty prefix selects
// DefaultKeyPrefix.
func NewSessionRepository(client goredis.Cmdable, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) key(tokenHash string) string {
	return r.prefix + tokenHash
}

// Create stores a new session. It fails if the token hash is already in use.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	data, err := json.Marshal(toRecord(session))
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("operation", "marshal session").Wrap(err)
	}

	err = r.client.SetArgs(ctx, r.key(session.TokenHash), data, goredis.SetArgs{
		Mode:     "NX",
		ExpireAt: session.ExpiresAt,
	}).Err()
	if errors.Is(err, goredis.Nil) {
		return oops.Code("SESSION_CREATE_FAILED").
			With("session_id", session.ID.String()).
			Errorf("session token already exists")
	}
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session").
			With("user_id", session.User.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	data, err := r.client.Get(ctx, r.key(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return rec.toSession()
}

// Touch rewrites the session with the new activity time and moves its key
// expiry. A session that vanished in the meantime yields auth.ErrNotFound.
func (r *SessionRepository) Touch(ctx context.Context, session *auth.Session, lastSeen, expiresAt time.Time) error {
	rec := toRecord(session)
	rec.LastSeenAt = lastSeen
	rec.ExpiresAt = expiresAt
	data, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").With("operation", "marshal session").Wrap(err)
	}

	err = r.client.SetArgs(ctx, r.key(session.TokenHash), data, goredis.SetArgs{
		Mode:     "XX",
		ExpireAt: expiresAt,
	}).Err()
	if errors.Is(err, goredis.Nil) {
		return oops.Code("SESSION_NOT_FOUND").With("id", session.ID.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "refresh session").
			With("id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, session *auth.Session) error {
	n, err := r.client.Del(ctx, r.key(session.TokenHash)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			With("id", session.ID.String()).
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("id", session.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts keys at their expiry.
func (r *SessionRepository) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// Ping checks connectivity.
func (r *SessionRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return oops.Code("SESSION_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func toRecord(s *auth.Session) record {
	return record{
		ID:         s.ID.String(),
		TokenHash:  s.TokenHash,
		UserID:     s.User.ID.String(),
		UserName:   s.User.Name,
		UserEmail:  s.User.Email,
		UserColor:  s.User.Color,
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
		LastSeenAt: s.LastSeenAt,
	}
}

func (rec record) toSession() (*auth.Session, error) {
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", rec.ID).Wrap(err)
	}
	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").With("user_id", rec.UserID).Wrap(err)
	}
	return &auth.Session{
		ID:        id,
		TokenHash: rec.TokenHash,
		User: auth.UserSnapshot{
			ID:    userID,
			Name:  rec.UserName,
			Email: rec.UserEmail,
			Color: rec.UserColor,
		},
		UserAgent:  rec.UserAgent,
		IPAddress:  rec.IPAddress,
		ExpiresAt:  rec.ExpiresAt,
		CreatedAt:  rec.CreatedAt,
		LastSeenAt: rec.LastSeenAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
