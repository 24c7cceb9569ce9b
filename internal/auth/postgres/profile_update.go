// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package postgres

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/firrel/regdemo/internal/auth"
)

// One statement per patch shape. $1..$4 are always id, name, color, updated_at.
const (
	updateProfileBasic = `
		UPDATE users SET name = $2, color = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, name, email, color`

	updateProfilePassword = `
		UPDATE users SET name = $2, color = $3, updated_at = $4, password_hash = $5
		WHERE id = $1
		RETURNING id, name, email, color`

	updateProfileEmail = `
		UPDATE users SET name = $2, color = $3, updated_at = $4,
		    new_email = $5,
		    verification_state = 'pending',
		    verification_token_hash = $6,
		    verification_expires_at = $7
		WHERE id = $1
		RETURNING id, name, email, color`

	updateProfilePasswordEmail = `
		UPDATE users SET name = $2, color = $3, updated_at = $4, password_hash = $5,
		    new_email = $6,
		    verification_state = 'pending',
		    verification_token_hash = $7,
		    verification_expires_at = $8
		WHERE id = $1
		RETURNING id, name, email, color`
)

// BuildProfileUpdate returns the statement and arguments for patch.
// The email shapes stage the new address; the live email is only replaced
// by ConsumeVerification.
func BuildProfileUpdate(id ulid.ULID, patch auth.ProfilePatch, now time.Time) (string, []any) {
	args := []any{id.String(), patch.Name, patch.Color, now}

	switch patch.Shape() {
	case auth.ShapePassword:
		return updateProfilePassword, append(args, *patch.PasswordHash)
	case auth.ShapeEmail:
		ec := patch.EmailChange
		return updateProfileEmail, append(args, ec.NewEmail, ec.Verification.Hash, ec.Verification.ExpiresAt)
	case auth.ShapePasswordEmail:
		ec := patch.EmailChange
		return updateProfilePasswordEmail, append(args,
			*patch.PasswordHash, ec.NewEmail, ec.Verification.Hash, ec.Verification.ExpiresAt)
	default:
		return updateProfileBasic, args
	}
}
