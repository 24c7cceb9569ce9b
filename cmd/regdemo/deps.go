// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package main

import (
	"context"
	"log/slog"

	"github.com/firrel/regdemo/internal/auth"
	"github.com/firrel/regdemo/internal/config"
	"github.com/firrel/regdemo/internal/mail"
	"github.com/firrel/regdemo/internal/observability"
	"github.com/firrel/regdemo/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendFactory opens the user and session stores.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// SenderFactory creates the mail transport.
	// Default: newSender
	SenderFactory func(cfg config.MailConfig, logger *slog.Logger) (mail.Sender, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// WebServerFactory creates the public API server.
	// Default: web.New
	WebServerFactory func(authSvc web.AuthService, profileSvc web.ProfileService, cfg web.Config, opts ...web.Option) (WebServer, error)
}

// Backend bundles the repositories the services run on.
type Backend struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	// Ready reports whether every backing store answers.
	Ready observability.ReadinessChecker
	// Close releases connections. It may be nil.
	Close func()
}

// AutoMigrator wraps the migrator methods used at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer interface wraps the methods used from web.Server.
type WebServer interface {
	Listen(addr string) error
	Shutdown(ctx context.Context) error
}
