// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

// PatchShape identifies which columns a ProfilePatch writes.
type PatchShape int

// Supported patch shapes. Name and color are always written.
const (
	ShapeBasic PatchShape = iota
	ShapePassword
	ShapeEmail
	ShapePasswordEmail
)

func (s PatchShape) String() string {
	switch s {
	case ShapeBasic:
		return "basic"
	case ShapePassword:
		return "password"
	case ShapeEmail:
		return "email"
	case ShapePasswordEmail:
		return "password+email"
	}
	return "unknown"
}

// EmailChange stages a new address behind a fresh verification token.
type EmailChange struct {
	NewEmail     string
	Verification Token
}

// ProfilePatch is a profile update. Optional parts are nil when unchanged.
type ProfilePatch struct {
	Name         string
	Color        string
	PasswordHash *string
	EmailChange  *EmailChange
}

// Shape reports which of the supported update shapes the patch uses.
func (p ProfilePatch) Shape() PatchShape {
	switch {
	case p.PasswordHash != nil && p.EmailChange != nil:
		return ShapePasswordEmail
	case p.PasswordHash != nil:
		return ShapePassword
	case p.EmailChange != nil:
		return ShapeEmail
	}
	return ShapeBasic
}
