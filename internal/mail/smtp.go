// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package mail

import (
	"context"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// Default SMTP endpoint. Port 587 negotiates STARTTLS.
const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers messages over SMTP with mandatory TLS.
type SMTPSender struct {
	client *gomail.Client
}

// NewSMTPSender creates an SMTPSender. Authentication is only configured
// when a username is set.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}

	opts := []gomail.Option{
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
		gomail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("SMTP_CLIENT_FAILED").With("host", cfg.Host).With("port", cfg.Port).Wrap(err)
	}
	return &SMTPSender{client: client}, nil
}

// Send delivers msg. Address errors wrap ErrInvalidMessage.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return oops.Code("MAIL_INVALID_ADDRESS").With("from", msg.From).Wrapf(ErrInvalidMessage, "%v", err)
	}
	if err := m.To(msg.To); err != nil {
		return oops.Code("MAIL_INVALID_ADDRESS").Wrapf(ErrInvalidMessage, "%v", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("kind", string(msg.Kind)).Wrap(err)
	}
	return nil
}
