// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package mail

import (
	"context"
	"log/slog"
	"regexp"
)

var hrefPattern = regexp.MustCompile(`href="([^"]+)"`)

// LogSender writes messages to a logger instead of delivering them.
// It is meant for local development: the log line carries the action link.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	var link string
	if m := hrefPattern.FindStringSubmatch(msg.HTML); len(m) == 2 {
		link = m[1]
	}
	s.logger.InfoContext(ctx, "email (log driver)",
		"kind", string(msg.Kind),
		"to", msg.To,
		"subject", msg.Subject,
		"link", link)
	return nil
}
