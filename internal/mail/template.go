// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package mail

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/samber/oops"
)

//go:embed templates/email.html
var templatesFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templatesFS, "templates/email.html"))

// Kind identifies a transactional email.
type Kind string

// Email kinds.
const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

type content struct {
	Subject    string
	Heading    string
	Intro      string
	Button     string
	Disclaimer string
	Path       string
}

var contents = map[Kind]content{
	KindVerification: {
		Subject:    "Email Verification",
		Heading:    "Email Verification",
		Intro:      "Please verify your email address by clicking the button below:",
		Button:     "Verify Email",
		Disclaimer: "If you didn't request this, you can ignore this email.",
		Path:       "/verify.html",
	},
	KindPasswordReset: {
		Subject:    "Password Reset Request",
		Heading:    "Password Reset Request",
		Intro:      "You requested a password reset for your Firrel Software account. Click the button below to reset your password:",
		Button:     "Reset Password",
		Disclaimer: "If you didn't request this, you can ignore this email. Your password will remain the same.",
		Path:       "/reset.html",
	},
}

type templateData struct {
	Heading    string
	Name       string
	Intro      string
	Button     string
	Disclaimer string
	Link       string
	Year       int
}

func render(c content, name, link string, year int) (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, templateData{
		Heading:    c.Heading,
		Name:       name,
		Intro:      c.Intro,
		Button:     c.Button,
		Disclaimer: c.Disclaimer,
		Link:       link,
		Year:       year,
	})
	if err != nil {
		return "", oops.Code("MAIL_RENDER_FAILED").Wrap(err)
	}
	return buf.String(), nil
}
