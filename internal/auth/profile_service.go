// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
)

// ProfileUpdate is the input to UpdateProfile. Password and Color are optional.
type ProfileUpdate struct {
	Name     string
	Email    string
	Password string
	Color    string
}

// ProfileResult is the outcome of a successful UpdateProfile.
type ProfileResult struct {
	// Session replaces the caller's previous session.
	Session *Session
	// Token is the plaintext token for the new session cookie.
	Token string
	// EmailChangePending is true when a verification email went to a new address.
	EmailChangePending bool
}

// ProfileService reads and updates the profile of a logged-in user.
type ProfileService struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, notifier Notifier, opts ...ServiceOption) (*ProfileService, error) {
	switch {
	case users == nil:
		return nil, oops.Code("PROFILE_SERVICE_INVALID").Errorf("users repository is required")
	case sessions == nil:
		return nil, oops.Code("PROFILE_SERVICE_INVALID").Errorf("session manager is required")
	case hasher == nil:
		return nil, oops.Code("PROFILE_SERVICE_INVALID").Errorf("password hasher is required")
	case notifier == nil:
		return nil, oops.Code("PROFILE_SERVICE_INVALID").Errorf("notifier is required")
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &ProfileService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		notifier: notifier,
		logger:   o.logger,
		now:      o.now,
	}, nil
}

// GetProfile returns the snapshot held by the session. It does not re-read the store.
func (p *ProfileService) GetProfile(session *Session) UserSnapshot {
	return session.User
}

// UpdateProfile writes name, color and optionally a new password, and stages
// an email change behind a verification link when the email differs. The
// session is then regenerated with the updated snapshot.
//
// The row update and session regeneration are separate steps: if regeneration
// fails the change is already stored and the caller still gets an error.
func (p *ProfileService) UpdateProfile(ctx context.Context, session *Session, in ProfileUpdate) (*ProfileResult, error) {
	if session == nil {
		return nil, oops.Code(CodeUnauthorized).Errorf("%s", MsgUnauthorized)
	}

	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, validationError(MsgNameEmailRequired)
	}

	color := NormalizeColor(in.Color)
	if color == "" {
		color = session.User.Color
	} else if !ValidColor(color) {
		return nil, validationError(MsgInvalidColor)
	}

	patch := ProfilePatch{Name: name, Color: color}

	if in.Password != "" {
		hash, err := p.hasher.Hash(in.Password)
		if err != nil {
			return nil, internalError(p.logger, "update profile: hash password", MsgServerError, err)
		}
		patch.PasswordHash = &hash
	}

	now := p.now()
	var verifyToken string
	if email != NormalizeEmail(session.User.Email) {
		owned, err := p.ownsEmail(ctx, session, email)
		if err != nil {
			return nil, err
		}
		if !owned {
			token, verification, err := IssueToken(now, VerificationTokenExpiry)
			if err != nil {
				return nil, internalError(p.logger, "update profile: issue token", MsgServerError, err)
			}
			verifyToken = token
			patch.EmailChange = &EmailChange{NewEmail: email, Verification: verification}
		}
	}

	updated, err := p.users.ApplyProfilePatch(ctx, session.User.ID, patch, now)
	if err != nil {
		return nil, internalError(p.logger, "update profile: apply patch", MsgServerError, err)
	}

	if patch.EmailChange != nil {
		if err := p.notifier.SendVerification(ctx, email, updated.Name, verifyToken); err != nil {
			return nil, internalError(p.logger, "update profile: send verification", MsgSendEmailFailed, err)
		}
	}

	next, token, err := p.sessions.Regenerate(ctx, session, updated)
	if err != nil {
		return nil, internalError(p.logger, "update profile: regenerate session", MsgSessionError, err)
	}

	p.logger.InfoContext(ctx, "profile updated",
		"user_id", updated.ID.String(),
		"shape", patch.Shape().String(),
	)

	return &ProfileResult{
		Session:            next,
		Token:              token,
		EmailChangePending: patch.EmailChange != nil,
	}, nil
}

// ownsEmail reports whether the session's user already holds email as its
// live address. It fails with a conflict when another account owns it.
func (p *ProfileService) ownsEmail(ctx context.Context, session *Session, email string) (bool, error) {
	owner, err := p.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, internalError(p.logger, "update profile: lookup email", MsgServerError, err)
	case owner.ID != session.User.ID:
		return false, conflictError(MsgEmailInUse)
	}
	// The snapshot predates a verified change of address.
	return true, nil
}
