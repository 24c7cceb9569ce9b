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

	"github.com/firrel/regdemo/pkg/errutil"
)

// Service provides registration, verification, login and password reset.
type Service struct {
	users               UserRepository
	sessions            *SessionManager
	hasher              PasswordHasher
	notifier            Notifier
	logger              *slog.Logger
	now                 func() time.Time
	concealUnknownEmail bool
}

// ServiceOption configures Service and ProfileService.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger              *slog.Logger
	now                 func() time.Time
	concealUnknownEmail bool
}

// WithLogger sets the logger used for internal failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// WithConcealUnknownEmail makes ForgotPassword report success for unknown
// addresses instead of failing with a not-found error.
func WithConcealUnknownEmail(conceal bool) ServiceOption {
	return func(o *serviceOptions) {
		o.concealUnknownEmail = conceal
	}
}

func buildOptions(opts []ServiceOption) (serviceOptions, error) {
	o := serviceOptions{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		return o, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger cannot be nil")
	}
	if o.now == nil {
		return o, oops.Code("AUTH_SERVICE_INVALID").Errorf("clock cannot be nil")
	}
	return o, nil
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, notifier Notifier, opts ...ServiceOption) (*Service, error) {
	switch {
	case users == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	case sessions == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	case hasher == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	case notifier == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("notifier is required")
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Service{
		users:               users,
		sessions:            sessions,
		hasher:              hasher,
		notifier:            notifier,
		logger:              o.logger,
		now:                 o.now,
		concealUnknownEmail: o.concealUnknownEmail,
	}, nil
}

// Register creates an unverified account and emails a verification link.
// No session is created.
func (s *Service) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return validationError(MsgAllFieldsRequired)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return conflictError(MsgEmailRegistered)
	case !errors.Is(err, ErrNotFound):
		return s.internal("register: lookup email", MsgServerError, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return s.internal("register: hash password", MsgServerError, err)
	}

	color, err := RandomColor()
	if err != nil {
		return s.internal("register: pick color", MsgServerError, err)
	}

	now := s.now()
	token, verification, err := IssueToken(now, VerificationTokenExpiry)
	if err != nil {
		return s.internal("register: issue token", MsgServerError, err)
	}

	user, err := NewUser(name, email, hash, color, verification, now)
	if err != nil {
		return s.internal("register: build user", MsgServerError, err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return conflictError(MsgEmailRegistered)
		}
		return s.internal("register: create user", MsgServerError, err)
	}

	if err := s.notifier.SendVerification(ctx, user.Email, user.Name, token); err != nil {
		return s.internal("register: send verification", MsgServerError, err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return nil
}

// VerifyEmail consumes a verification token, marking the account verified
// and promoting any staged email change.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return validationError(MsgTokenRequired)
	}

	user, err := s.users.ConsumeVerification(ctx, HashToken(token), s.now())
	switch {
	case errors.Is(err, ErrNotFound):
		return invalidTokenError(MsgInvalidVerification)
	case errors.Is(err, ErrEmailTaken):
		return conflictError(MsgEmailInUse)
	case err != nil:
		return s.internal("verify email", MsgServerError, err)
	}

	s.logger.InfoContext(ctx, "email verified", "user_id", user.ID.String())
	return nil
}

// Login authenticates a user and starts a session.
// Returns the session and the plaintext token for the cookie.
// Unknown emails still pay for a hash comparison so timing does not reveal
// whether an account exists.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*Session, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", validationError(MsgAllFieldsRequired)
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, "", s.internal("login: lookup email", MsgServerError, lookupErr)
	}
	userExists := lookupErr == nil

	targetHash := dummyHashFor(s.hasher)
	if userExists {
		targetHash = user.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, "", invalidCredentialsError(MsgInvalidCredentials)
		}
		return nil, "", s.internal("login: verify password", MsgServerError, verifyErr)
	}

	if !userExists || !valid {
		return nil, "", invalidCredentialsError(MsgInvalidCredentials)
	}

	// Only a caller holding the password learns that verification is pending.
	if !user.IsVerified() {
		return nil, "", invalidCredentialsError(MsgVerifyFirst)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	session, token, err := s.sessions.Start(ctx, user.Snapshot(), userAgent, ipAddress)
	if err != nil {
		return nil, "", s.internal("login: start session", MsgServerError, err)
	}
	return session, token, nil
}

// upgradeHash re-hashes the password with current settings. Failures are logged only.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password rehash failed", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password rehash not stored", err)
		return
	}
	user.PasswordHash = hash
}

// CheckSession resolves the session behind token. It returns (nil, nil)
// when there is no live session.
func (s *Service) CheckSession(ctx context.Context, token string) (*Session, error) {
	session, err := s.sessions.Resolve(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.internal("check session", MsgServerError, err)
	}
	return session, nil
}

// Logout destroys the session behind token. It succeeds when there is none.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "logout failed", err)
		return oops.Code(CodeSession).With("operation", "logout").Errorf("%s", MsgLogoutFailed)
	}
	return nil
}

// ForgotPassword issues a one-hour reset token and emails it.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return validationError(MsgEmailRequired)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		if s.concealUnknownEmail {
			return nil
		}
		return oops.Code(CodeNotFound).Errorf("%s", MsgUserNotFound)
	}
	if err != nil {
		return s.internal("forgot password: lookup email", MsgSendEmailFailed, err)
	}

	token, reset, err := IssueToken(s.now(), ResetTokenExpiry)
	if err != nil {
		return s.internal("forgot password: issue token", MsgSendEmailFailed, err)
	}

	if err := s.users.SetResetToken(ctx, user.ID, reset); err != nil {
		return s.internal("forgot password: store token", MsgSendEmailFailed, err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.Name, token); err != nil {
		return s.internal("forgot password: send email", MsgSendEmailFailed, err)
	}
	return nil
}

// ResetPassword consumes a reset token and stores a new password hash.
// It does not start a session or end existing ones.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return validationError(MsgResetFieldsRequired)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal("reset password: hash", MsgServerError, err)
	}

	userID, err := s.users.ConsumeReset(ctx, HashToken(token), hash, s.now())
	if errors.Is(err, ErrNotFound) {
		return invalidTokenError(MsgInvalidResetToken)
	}
	if err != nil {
		return s.internal("reset password: store", MsgServerError, err)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", userID.String())
	return nil
}

// internal logs cause and returns an opaque error carrying only public.
func (s *Service) internal(operation, public string, cause error) error {
	return internalError(s.logger, operation, public, cause)
}

func internalError(logger *slog.Logger, operation, public string, cause error) error {
	errutil.LogError(logger, operation+" failed", cause)
	return oops.Code(CodeInternal).With("operation", operation).Errorf("%s", public)
}
