// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/firrel/regdemo/internal/auth"
	"github.com/firrel/regdemo/pkg/errutil"
)

var codeStatus = map[string]int{
	auth.CodeValidation:         fiber.StatusBadRequest,
	auth.CodeConflict:           fiber.StatusBadRequest,
	auth.CodeInvalidCredentials: fiber.StatusBadRequest,
	auth.CodeInvalidToken:       fiber.StatusBadRequest,
	auth.CodeNotFound:           fiber.StatusBadRequest,
	auth.CodeUnauthorized:       fiber.StatusUnauthorized,
	auth.CodeSession:            fiber.StatusInternalServerError,
	auth.CodeInternal:           fiber.StatusInternalServerError,
}

// statusFor maps an error to the HTTP status and the message shown to the
// client. Errors without a known code are reported as a generic server error.
func statusFor(err error) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		code, _ := oopsErr.Code().(string)
		if status, known := codeStatus[code]; known {
			return status, oopsErr.Error()
		}
	}
	return fiber.StatusInternalServerError, auth.MsgServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		errutil.LogErrorContext(c.UserContext(), s.logger, "request failed", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}
