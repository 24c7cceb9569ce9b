// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, entry := range entries {
		names[entry.Name()] = true
	}

	for _, want := range []string{
		"000001_users.up.sql",
		"000001_users.down.sql",
		"000002_sessions.up.sql",
		"000002_sessions.down.sql",
	} {
		assert.True(t, names[want], "missing %s", want)
	}

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for name := range names {
		assert.True(t, pattern.MatchString(name), "%s does not match NNNNNN_name.(up|down).sql", name)
	}
}

func TestMigrationsFS_UsersSchemaConstraints(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/000001_users.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "idx_users_email ON users (email)")
	assert.Contains(t, sql, "'unverified'")
	assert.Contains(t, sql, "'pending'")
	assert.True(t, strings.Contains(sql, "verification_token_hash IS NULL) = (verification_expires_at IS NULL"),
		"verification token and expiry must be paired")
	assert.True(t, strings.Contains(sql, "reset_token_hash IS NULL) = (reset_expires_at IS NULL"),
		"reset token and expiry must be paired")
}
