// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

// Package web exposes the account services as a JSON API over Fiber and
// keeps the session cookie in step with the server-side session.
package web

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/samber/oops"

	"github.com/firrel/regdemo/internal/auth"
)

// AuthService is the subset of auth.Service the API calls.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) error
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*auth.Session, string, error)
	Logout(ctx context.Context, token string) error
	CheckSession(ctx context.Context, token string) (*auth.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// ProfileService is the subset of auth.ProfileService the API calls.
type ProfileService interface {
	GetProfile(session *auth.Session) auth.UserSnapshot
	UpdateProfile(ctx context.Context, session *auth.Session, in auth.ProfileUpdate) (*auth.ProfileResult, error)
}

// Metrics records request and account outcomes.
type Metrics interface {
	RecordHTTPRequest(method, route string, status int, elapsed time.Duration)
	RecordAuthEvent(event string, err error)
}

// Config holds the HTTP-facing settings.
type Config struct {
	CookieName   string
	CookieSecure bool
	// SessionTTL is the cookie Max-Age. It matches the server-side TTL.
	SessionTTL  time.Duration
	PublicDir   string
	CORSOrigins []string
}

// Server is the public API.
type Server struct {
	app     *fiber.App
	auth    AuthService
	profile ProfileService
	cfg     Config
	metrics Metrics
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records every request and account operation.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the access and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the Fiber application and registers every route.
func New(authSvc AuthService, profileSvc ProfileService, cfg Config, opts ...Option) (*Server, error) {
	switch {
	case authSvc == nil:
		return nil, oops.Code("WEB_INVALID").Errorf("auth service is required")
	case profileSvc == nil:
		return nil, oops.Code("WEB_INVALID").Errorf("profile service is required")
	case cfg.CookieName == "":
		return nil, oops.Code("WEB_INVALID").Errorf("cookie name is required")
	case cfg.SessionTTL <= 0:
		return nil, oops.Code("WEB_INVALID").With("ttl", cfg.SessionTTL).Errorf("session TTL must be positive")
	}

	s := &Server{
		auth:    authSvc,
		profile: profileSvc,
		cfg:     cfg,
		metrics: nopMetrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "regdemo",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(requestid.New())
	s.app.Use(s.corsMiddleware())
	s.app.Use(s.observe)

	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", s.register)
	authGroup.Get("/verify-email", s.verifyEmail)
	authGroup.Post("/login", s.login)
	authGroup.Post("/logout", s.logout)
	authGroup.Get("/check-session", s.peekSession, s.checkSession)
	authGroup.Post("/forgot-password", s.forgotPassword)
	authGroup.Post("/reset-password", s.resetPassword)

	userGroup := s.app.Group("/user", s.loadSession, RequireSession)
	userGroup.Get("/profile", s.getProfile)
	userGroup.Post("/profile/update", s.updateProfile)

	if s.cfg.PublicDir != "" {
		s.app.Static("/", s.cfg.PublicDir)
	}
}

func (s *Server) corsMiddleware() fiber.Handler {
	if len(s.cfg.CORSOrigins) == 0 {
		return cors.New()
	}
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(s.cfg.CORSOrigins, ","),
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowCredentials: true,
	})
}

// App returns the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	if err := s.app.Listen(addr); err != nil {
		return oops.Code("WEB_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
func (nopMetrics) RecordAuthEvent(string, error)                        {}
