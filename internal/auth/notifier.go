// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import "context"

// Notifier delivers account emails. Implementations build the links that
// carry the plaintext token.
type Notifier interface {
	// SendVerification asks the owner of address to confirm it.
	SendVerification(ctx context.Context, address, name, token string) error

	// SendPasswordReset sends a password reset link to address.
	SendPasswordReset(ctx context.Context, address, name, token string) error
}
