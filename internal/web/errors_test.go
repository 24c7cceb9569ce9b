// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package web

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/firrel/regdemo/internal/auth"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", oops.Code(auth.CodeValidation).Errorf("%s", auth.MsgAllFieldsRequired), 400, auth.MsgAllFieldsRequired},
		{"conflict", oops.Code(auth.CodeConflict).Errorf("%s", auth.MsgEmailInUse), 400, auth.MsgEmailInUse},
		{"credentials", oops.Code(auth.CodeInvalidCredentials).Errorf("%s", auth.MsgInvalidCredentials), 400, auth.MsgInvalidCredentials},
		{"token", oops.Code(auth.CodeInvalidToken).Errorf("%s", auth.MsgInvalidResetToken), 400, auth.MsgInvalidResetToken},
		{"not found", oops.Code(auth.CodeNotFound).Errorf("%s", auth.MsgUserNotFound), 400, auth.MsgUserNotFound},
		{"unauthorized", oops.Code(auth.CodeUnauthorized).Errorf("%s", auth.MsgUnauthorized), 401, auth.MsgUnauthorized},
		{"session", oops.Code(auth.CodeSession).Errorf("%s", auth.MsgLogoutFailed), 500, auth.MsgLogoutFailed},
		{"internal", oops.Code(auth.CodeInternal).Errorf("%s", auth.MsgSendEmailFailed), 500, auth.MsgSendEmailFailed},
		{"fiber error", fiber.NewError(fiber.StatusNotFound, "Cannot GET /x"), 404, "Cannot GET /x"},
		{"unknown code", oops.Code("DB_CONNECT_FAILED").Errorf("dial tcp 10.0.0.5:5432"), 500, auth.MsgServerError},
		{"plain error", errors.New("boom"), 500, auth.MsgServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}
