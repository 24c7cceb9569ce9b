// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

// Package mail renders and delivers the verification and password reset emails.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/firrel/regdemo/internal/auth"
	"github.com/firrel/regdemo/pkg/errutil"
)

// DefaultFrom is the sender address used when none is configured.
const DefaultFrom = "Firrel Software <no-reply@firrelsoftware.com>"

// ErrInvalidMessage marks a message that can never be delivered as built.
// Sends failing with it are not retried.
var ErrInvalidMessage = errors.New("invalid message")

// Message is a rendered email ready for delivery.
type Message struct {
	Kind    Kind
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Observer records delivery outcomes.
type Observer interface {
	RecordEmail(kind string, err error)
}

// Config holds Mailer settings.
type Config struct {
	// BaseURL is the public origin that serves verify.html and reset.html.
	BaseURL string
	From    string
	// Retries is the number of additional attempts after a failed send.
	Retries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// Mailer implements auth.Notifier on top of a Sender.
type Mailer struct {
	sender   Sender
	cfg      Config
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithObserver records every delivery outcome.
func WithObserver(o Observer) Option {
	return func(m *Mailer) {
		m.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMailer creates a Mailer.
func NewMailer(sender Sender, cfg Config, opts ...Option) (*Mailer, error) {
	if sender == nil {
		return nil, oops.Code("MAILER_INVALID").Errorf("sender is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("MAILER_INVALID").With("base_url", cfg.BaseURL).Errorf("base URL must be absolute")
	}
	if cfg.Retries < 0 {
		return nil, oops.Code("MAILER_INVALID").With("retries", cfg.Retries).Errorf("retries cannot be negative")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}

	m := &Mailer{
		sender: sender,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SendVerification emails a link to <base>/verify.html?token=<token>.
func (m *Mailer) SendVerification(ctx context.Context, address, name, token string) error {
	return m.send(ctx, KindVerification, address, name, token)
}

// SendPasswordReset emails a link to <base>/reset.html?token=<token>.
func (m *Mailer) SendPasswordReset(ctx context.Context, address, name, token string) error {
	return m.send(ctx, KindPasswordReset, address, name, token)
}

// Link returns the page URL carrying token for kind.
func (m *Mailer) Link(kind Kind, token string) string {
	return m.cfg.BaseURL + contents[kind].Path + "?token=" + url.QueryEscape(token)
}

func (m *Mailer) send(ctx context.Context, kind Kind, address, name, token string) (err error) {
	defer func() {
		if m.observer != nil {
			m.observer.RecordEmail(string(kind), err)
		}
	}()

	c := contents[kind]
	body, err := render(c, name, m.Link(kind, token), m.now().Year())
	if err != nil {
		return err
	}
	msg := Message{
		Kind:    kind,
		From:    m.cfg.From,
		To:      address,
		Subject: c.Subject,
		HTML:    body,
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(m.cfg.Retries), retry.NewExponential(m.cfg.Backoff)) //nolint:gosec // validated non-negative
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		sendErr := m.sender.Send(ctx, msg)
		if sendErr == nil || errors.Is(sendErr, ErrInvalidMessage) {
			return sendErr
		}
		m.logger.WarnContext(ctx, "email send failed",
			"kind", string(kind),
			"attempt", attempt,
			"error", sendErr)
		return retry.RetryableError(sendErr)
	})
	if err != nil {
		errutil.LogErrorContext(ctx, m.logger, "email not delivered", err)
		return oops.Code("MAIL_SEND_FAILED").
			With("kind", string(kind)).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.Notifier = (*Mailer)(nil)
