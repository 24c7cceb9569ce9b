// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/firrel/regdemo/internal/auth"
)

// Success messages.
const (
	MsgRegistered       = "User registered successfully. Please check your email to verify your account."
	MsgEmailVerified    = "Email verified successfully"
	MsgLoginSuccessful  = "Login successful"
	MsgLoggedOut        = "Logged out successfully"
	MsgResetLinkSent    = "Reset link sent to email"
	MsgPasswordUpdated  = "Password updated successfully"
	MsgProfileUpdated   = "Profile updated successfully!"
	MsgVerifyNewAddress = " Please verify your new email address."
)

const msgInvalidBody = "Invalid request body"

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" form:"token"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

type updateProfileRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Color    string `json:"color" form:"color"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Message string            `json:"message,omitempty"`
	User    auth.UserSnapshot `json:"user"`
}

type sessionStatusResponse struct {
	LoggedIn bool               `json:"loggedIn"`
	User     *auth.UserSnapshot `json:"user,omitempty"`
}

// parse decodes the body. An empty body decodes to the zero request so the
// services report the missing fields.
func parse(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return badRequest(msgInvalidBody)
	}
	return nil
}

func (s *Server) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	err := s.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	s.metrics.RecordAuthEvent("register", err)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(messageResponse{Message: MsgRegistered})
}

func (s *Server) verifyEmail(c *fiber.Ctx) error {
	err := s.auth.VerifyEmail(c.UserContext(), c.Query("token"))
	s.metrics.RecordAuthEvent("verify_email", err)
	if err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: MsgEmailVerified})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	session, token, err := s.auth.Login(c.UserContext(), req.Email, req.Password, c.Get(fiber.HeaderUserAgent), c.IP())
	s.metrics.RecordAuthEvent("login", err)
	if err != nil {
		return err
	}

	s.setCookie(c, token)
	return c.JSON(userResponse{Message: MsgLoginSuccessful, User: session.User})
}

func (s *Server) logout(c *fiber.Ctx) error {
	err := s.auth.Logout(c.UserContext(), c.Cookies(s.cfg.CookieName))
	s.metrics.RecordAuthEvent("logout", err)
	if err != nil {
		return err
	}

	s.clearCookie(c)
	return c.JSON(messageResponse{Message: MsgLoggedOut})
}

func (s *Server) checkSession(c *fiber.Ctx) error {
	session := SessionFrom(c)
	if session == nil {
		return c.JSON(sessionStatusResponse{LoggedIn: false})
	}
	user := session.User
	return c.JSON(sessionStatusResponse{LoggedIn: true, User: &user})
}

func (s *Server) forgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	err := s.auth.ForgotPassword(c.UserContext(), req.Email)
	s.metrics.RecordAuthEvent("forgot_password", err)
	if err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: MsgResetLinkSent})
}

func (s *Server) resetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	err := s.auth.ResetPassword(c.UserContext(), req.Token, req.NewPassword)
	s.metrics.RecordAuthEvent("reset_password", err)
	if err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: MsgPasswordUpdated})
}

func (s *Server) getProfile(c *fiber.Ctx) error {
	return c.JSON(userResponse{User: s.profile.GetProfile(SessionFrom(c))})
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	result, err := s.profile.UpdateProfile(c.UserContext(), SessionFrom(c), auth.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Color:    req.Color,
	})
	s.metrics.RecordAuthEvent("update_profile", err)
	if err != nil {
		return err
	}

	s.setCookie(c, result.Token)
	c.Locals(localSession, result.Session)

	msg := MsgProfileUpdated
	if result.EmailChangePending {
		msg += MsgVerifyNewAddress
	}
	return c.JSON(userResponse{Message: msg, User: result.Session.User})
}
