// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firrel/regdemo/internal/logging"
	"github.com/firrel/regdemo/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("SESSION_RESOLVE_FAILED").
		With("operation", "get session by token hash").
		Errorf("connection reset")

	errutil.LogError(logger, "check session failed", err)

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "check session failed", entry["msg"])
	assert.Equal(t, "SESSION_RESOLVE_FAILED", entry["code"])
	assert.Equal(t, "connection reset", entry["error"])
	assert.Equal(t, map[string]any{"operation": "get session by token hash"}, entry["context"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "email not delivered", errors.New("dial tcp: timeout"))

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "dial tcp: timeout")
	assert.NotContains(t, entry, "code")
}

func TestLogErrorContext_AttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup(logging.Options{Service: "regdemo", Writer: &buf})
	ctx := logging.WithRequestID(context.Background(), "req-42")

	errutil.LogErrorContext(ctx, logger, "request failed", oops.Code("AUTH_INTERNAL").Errorf("Server error"))

	entry := decode(t, &buf)
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "AUTH_INTERNAL", entry["code"])
}
