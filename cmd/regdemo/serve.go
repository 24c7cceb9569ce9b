// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/firrel/regdemo/internal/auth"
	authpg "github.com/firrel/regdemo/internal/auth/postgres"
	authredis "github.com/firrel/regdemo/internal/auth/redis"
	"github.com/firrel/regdemo/internal/config"
	"github.com/firrel/regdemo/internal/logging"
	"github.com/firrel/regdemo/internal/mail"
	"github.com/firrel/regdemo/internal/observability"
	"github.com/firrel/regdemo/internal/store"
	"github.com/firrel/regdemo/internal/web"
	"github.com/firrel/regdemo/pkg/errutil"
)

const (
	serviceName    = "regdemo"
	readyTimeout   = 2 * time.Second
	obsStopTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP server exposing /auth and /user endpoints, the
static front end and, when configured, the metrics/health listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.BackendFactory == nil {
		d.BackendFactory = openBackend
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if d.SenderFactory == nil {
		d.SenderFactory = newSender
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, logger)
		}
	}
	if d.WebServerFactory == nil {
		d.WebServerFactory = func(authSvc web.AuthService, profileSvc web.ProfileService, cfg web.Config, opts ...web.Option) (WebServer, error) {
			return web.New(authSvc, profileSvc, cfg, opts...)
		}
	}
	return d
}

func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	})

	logger.Info("starting server",
		"http_addr", cfg.HTTP.Addr,
		"session_store", cfg.Session.Store,
		"mail_driver", cfg.Mail.Driver,
	)

	if cfg.Database.AutoMigrate {
		if err := runAutoMigration(cfg.Database.URL, deps.MigratorFactory); err != nil {
			return err
		}
	}

	backend, err := deps.BackendFactory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if backend.Close != nil {
		defer backend.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.Ready, logger)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	sessions, err := auth.NewSessionManager(backend.Sessions,
		auth.WithSessionTTL(cfg.Session.TTL),
		auth.WithSessionLogger(logger),
	)
	if err != nil {
		return err
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	sender, err := deps.SenderFactory(cfg.Mail, logger)
	if err != nil {
		return err
	}
	mailer, err := mail.NewMailer(sender, mail.Config{
		BaseURL: cfg.HTTP.BaseURL,
		From:    cfg.Mail.From,
		Retries: cfg.Mail.Retries,
		Backoff: cfg.Mail.Backoff,
	}, mail.WithObserver(metrics), mail.WithLogger(logger))
	if err != nil {
		return err
	}

	svcOpts := []auth.ServiceOption{
		auth.WithLogger(logger),
		auth.WithConcealUnknownEmail(cfg.Auth.ConcealUnknownEmail),
	}
	authSvc, err := auth.NewAuthService(backend.Users, sessions, hasher, mailer, svcOpts...)
	if err != nil {
		return err
	}
	profileSvc, err := auth.NewProfileService(backend.Users, sessions, hasher, mailer, svcOpts...)
	if err != nil {
		return err
	}

	webServer, err := deps.WebServerFactory(authSvc, profileSvc, web.Config{
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   cfg.Session.TTL,
		PublicDir:    cfg.HTTP.PublicDir,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
	}, web.WithMetrics(metrics), web.WithLogger(logger))
	if err != nil {
		return err
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	if cfg.Session.PruneInterval > 0 && cfg.Session.Store == config.StorePostgres {
		go runPruner(ctx, sessions, cfg.Session.PruneInterval, metrics, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := webServer.Listen(cfg.HTTP.Addr); serveErr != nil {
			errChan <- serveErr
		}
	}()

	cmd.Println("Server started on " + cfg.HTTP.Addr)
	logger.Info("server ready", "http_addr", cfg.HTTP.Addr)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case runErr = <-errChan:
		errutil.LogError(logger, "http server failed", runErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}

	if obsServer != nil {
		obsCtx, obsCancel := context.WithTimeout(context.Background(), obsStopTimeout)
		defer obsCancel()
		if err := obsServer.Stop(obsCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// openBackend connects the configured stores. Users always live in
// PostgreSQL; sessions live in PostgreSQL or Redis.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{
		Retries:  cfg.Database.ConnectRetries,
		Backoff:  cfg.Database.ConnectBackoff,
		MaxConns: cfg.Database.MaxConns,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	dbReady := store.Ready(pool, readyTimeout)
	backend := &Backend{
		Users:    authpg.NewUserRepository(pool),
		Sessions: authpg.NewSessionRepository(pool),
		Ready:    dbReady,
		Close:    pool.Close,
	}
	if cfg.Session.Store != config.StoreRedis {
		return backend, nil
	}

	client, err := authredis.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = authredis.DefaultKeyPrefix
	}
	sessions := authredis.NewSessionRepository(client, prefix)
	redisReady := store.Ready(sessions, readyTimeout)

	backend.Sessions = sessions
	backend.Ready = func() bool { return dbReady() && redisReady() }
	backend.Close = func() {
		if err := client.Close(); err != nil {
			logger.Warn("error closing redis client", "error", err)
		}
		pool.Close()
	}
	return backend, nil
}

// newSender picks the SMTP transport or the log transport.
func newSender(cfg config.MailConfig, logger *slog.Logger) (mail.Sender, error) {
	if cfg.Driver == config.MailLog {
		logger.Warn("mail driver is log; emails are written to the log only")
		return mail.NewLogSender(logger), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
	})
}

// runAutoMigration applies pending migrations. A close failure is logged and
// does not fail startup.
func runAutoMigration(databaseURL string, factory func(string) (AutoMigrator, error)) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator, connection may leak", "error", closeErr)
		}
	}()

	slog.Info("applying database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").Wrap(err)
	}
	return nil
}

// Pruner deletes expired sessions.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// runPruner prunes expired sessions every interval until ctx is done.
func runPruner(ctx context.Context, p Pruner, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Prune(ctx)
			if err != nil {
				errutil.LogErrorContext(ctx, logger, "session prune failed", err)
				continue
			}
			metrics.RecordSessionsPruned(n)
			if n > 0 {
				logger.Info("pruned expired sessions", "count", n)
			}
		}
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel is closed or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
