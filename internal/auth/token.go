// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Token lifetimes.
const (
	TokenBytes              = 32 // 64 hex chars
	VerificationTokenExpiry = 24 * time.Hour
	ResetTokenExpiry        = time.Hour
)

// Token is the persisted half of a one-time token: only the hash is stored.
type Token struct {
	Hash      string
	ExpiresAt time.Time
}

// ValidAt reports whether the token is usable at t. A token is valid strictly
// before its expiry.
func (t Token) ValidAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// GenerateToken creates a secure random token and its hash.
// The plaintext token is handed to the user; the hash is stored.
func GenerateToken() (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// IssueToken generates a token that expires ttl after now.
func IssueToken(now time.Time, ttl time.Duration) (string, Token, error) {
	plain, hash, err := GenerateToken()
	if err != nil {
		return "", Token{}, err
	}
	return plain, Token{Hash: hash, ExpiresAt: now.Add(ttl)}, nil
}

// HashToken computes the hex SHA-256 of a token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks a plaintext token against a stored hash in constant time.
func VerifyToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}
