// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/oklog/ulid/v2"

	"github.com/firrel/regdemo/internal/auth"
	"github.com/firrel/regdemo/internal/logging"
	"github.com/firrel/regdemo/pkg/errutil"
)

const localSession = "regdemo.session"

// SessionFrom returns the session resolved for this request, or nil.
func SessionFrom(c *fiber.Ctx) *auth.Session {
	session, _ := c.Locals(localSession).(*auth.Session)
	return session
}

// RequireSession rejects requests without a session bound to a user. It only
// reads what loadSession resolved.
func RequireSession(c *fiber.Ctx) error {
	session := SessionFrom(c)
	if session == nil || session.User.ID.Compare(ulid.ULID{}) == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": auth.MsgUnauthorized})
	}
	return c.Next()
}

// loadSession resolves the session cookie for routes behind RequireSession.
// A live session slides its expiry and the cookie is re-issued; a stale cookie
// is cleared. Store failures are server errors.
func (s *Server) loadSession(c *fiber.Ctx) error {
	if err := s.resolveSession(c); err != nil {
		return err
	}
	return c.Next()
}

// peekSession resolves the session like loadSession but reports a store
// failure as an anonymous request.
func (s *Server) peekSession(c *fiber.Ctx) error {
	if err := s.resolveSession(c); err != nil {
		errutil.LogErrorContext(c.UserContext(), s.logger, "session lookup failed", err)
	}
	return c.Next()
}

func (s *Server) resolveSession(c *fiber.Ctx) error {
	token := c.Cookies(s.cfg.CookieName)
	if token == "" {
		return nil
	}

	session, err := s.auth.CheckSession(c.UserContext(), token)
	if err != nil {
		return err
	}
	if session == nil {
		s.clearCookie(c)
		return nil
	}

	c.Locals(localSession, session)
	s.setCookie(c, token)
	return nil
}

// observe attaches the request id to the request context, then logs and
// measures the request once the error handler has written the response.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()

	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		c.SetUserContext(logging.WithRequestID(c.UserContext(), id))
	}

	if err := c.Next(); err != nil {
		if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError) //nolint:errcheck // best effort
		}
	}

	elapsed := time.Since(start)
	status := c.Response().StatusCode()
	route := c.Route().Path
	if status == fiber.StatusNotFound {
		route = "unmatched"
	}

	s.metrics.RecordHTTPRequest(c.Method(), route, status, elapsed)
	s.logger.InfoContext(c.UserContext(), "http request",
		"method", c.Method(),
		"path", c.Path(),
		"route", route,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
		"ip", c.IP())
	return nil
}

func (s *Server) setCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		Secure:   s.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   s.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
