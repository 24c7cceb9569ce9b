// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when a write collides with
// another account's email address.
var ErrEmailTaken = errors.New("email already taken")

// Error codes carried by errors returned from the services. The web layer
// maps them onto HTTP statuses; the error message is safe to show to clients.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeConflict           = "AUTH_CONFLICT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeNotFound           = "AUTH_NOT_FOUND"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeSession            = "AUTH_SESSION"
	CodeInternal           = "AUTH_INTERNAL"
)

// Client-facing messages.
const (
	MsgAllFieldsRequired   = "All fields are required"
	MsgEmailRegistered     = "Email already registered"
	MsgEmailInUse          = "Email already in use"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgVerifyFirst         = "Please verify your email before logging in"
	MsgTokenRequired       = "Verification token is required"
	MsgInvalidVerification = "Invalid or expired verification token"
	MsgEmailRequired       = "Email is required"
	MsgUserNotFound        = "User not found"
	MsgResetFieldsRequired = "Token and new password required"
	MsgInvalidResetToken   = "Invalid or expired token"
	MsgNameEmailRequired   = "Name and email are required"
	MsgInvalidColor        = "Color must be a hex value such as #1A2B3C"
	MsgUnauthorized        = "Unauthorized: Please log in"
	MsgServerError         = "Server error"
	MsgSendEmailFailed     = "Failed to send email"
	MsgLogoutFailed        = "Logout failed"
	MsgSessionError        = "Session error"
)

func validationError(msg string) error {
	return oops.Code(CodeValidation).Errorf("%s", msg)
}

func conflictError(msg string) error {
	return oops.Code(CodeConflict).Errorf("%s", msg)
}

func invalidCredentialsError(msg string) error {
	return oops.Code(CodeInvalidCredentials).Errorf("%s", msg)
}

func invalidTokenError(msg string) error {
	return oops.Code(CodeInvalidToken).Errorf("%s", msg)
}
