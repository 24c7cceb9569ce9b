// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

//go:build integration

package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/firrel/regdemo/internal/auth"
	authpg "github.com/firrel/regdemo/internal/auth/postgres"
	"github.com/firrel/regdemo/internal/mail"
	"github.com/firrel/regdemo/internal/store"
	"github.com/firrel/regdemo/internal/web"
)

type reply struct {
	status int
	body   map[string]any
	cookie *http.Cookie
}

var _ = Describe("Account lifecycle", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		pool      *pgxpool.Pool
		outbox    *mail.Recorder
		server    *web.Server
		cookie    string
	)

	call := func(method, path, body, sid string) reply {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if sid != "" {
			req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
		}
		resp, err := server.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		out := reply{status: resp.StatusCode}
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		if len(raw) > 0 {
			Expect(json.Unmarshal(raw, &out.body)).To(Succeed())
		}
		for _, c := range resp.Cookies() {
			if c.Name == "sid" {
				out.cookie = c
			}
		}
		return out
	}

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("regdemo_test"),
			postgres.WithUsername("regdemo"),
			postgres.WithPassword("regdemo"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Connect(ctx, connStr, store.ConnectOptions{Retries: 3, Backoff: 100 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		users := authpg.NewUserRepository(pool)
		sessions, err := auth.NewSessionManager(authpg.NewSessionRepository(pool), auth.WithSessionLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		hasher, err := auth.NewPasswordHasher(auth.AlgorithmBcrypt, 4)
		Expect(err).NotTo(HaveOccurred())

		outbox = mail.NewRecorder()
		mailer, err := mail.NewMailer(outbox, mail.Config{BaseURL: "http://localhost:3000"}, mail.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		authSvc, err := auth.NewAuthService(users, sessions, hasher, mailer, auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		profileSvc, err := auth.NewProfileService(users, sessions, hasher, mailer, auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		server, err = web.New(authSvc, profileSvc, web.Config{
			CookieName: "sid",
			SessionTTL: auth.DefaultSessionTTL,
		}, web.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("registers an unverified account", func() {
		r := call(http.MethodPost, "/auth/register", `{"name":"Ada","email":"Ada@X.com","password":"pw1"}`, "")
		Expect(r.status).To(Equal(http.StatusCreated))
		Expect(outbox.LastToken(mail.KindVerification, "ada@x.com")).NotTo(BeEmpty())

		r = call(http.MethodPost, "/auth/register", `{"name":"Ada","email":"ada@x.com","password":"pw1"}`, "")
		Expect(r.status).To(Equal(http.StatusBadRequest))
		Expect(r.body["error"]).To(Equal(auth.MsgEmailRegistered))
	})

	It("refuses login before verification", func() {
		r := call(http.MethodPost, "/auth/login", `{"email":"ada@x.com","password":"pw1"}`, "")
		Expect(r.status).To(Equal(http.StatusBadRequest))
		Expect(r.body["error"]).To(Equal("Please verify your email before logging in"))
		Expect(r.cookie).To(BeNil())
	})

	It("verifies once", func() {
		token := outbox.LastToken(mail.KindVerification, "ada@x.com")

		r := call(http.MethodGet, "/auth/verify-email?token="+token, "", "")
		Expect(r.status).To(Equal(http.StatusOK))

		r = call(http.MethodGet, "/auth/verify-email?token="+token, "", "")
		Expect(r.status).To(Equal(http.StatusBadRequest))
		Expect(r.body["error"]).To(Equal(auth.MsgInvalidVerification))
	})

	It("logs in and reports the session", func() {
		r := call(http.MethodPost, "/auth/login", `{"email":"ada@x.com","password":"wrong"}`, "")
		Expect(r.status).To(Equal(http.StatusBadRequest))
		Expect(r.body["error"]).To(Equal(auth.MsgInvalidCredentials))

		r = call(http.MethodPost, "/auth/login", `{"email":"ada@x.com","password":"pw1"}`, "")
		Expect(r.status).To(Equal(http.StatusOK))
		Expect(r.cookie).NotTo(BeNil())
		Expect(r.cookie.HttpOnly).To(BeTrue())
		cookie = r.cookie.Value

		r = call(http.MethodGet, "/auth/check-session", "", cookie)
		Expect(r.body["loggedIn"]).To(BeTrue())
		Expect(r.body["user"]).To(HaveKeyWithValue("name", "Ada"))
	})

	It("stages an email change and rotates the session", func() {
		r := call(http.MethodPost, "/user/profile/update",
			`{"name":"Ada L.","email":"ada@new.com","color":"#abcdef"}`, cookie)
		Expect(r.status).To(Equal(http.StatusOK))
		Expect(r.body["message"]).To(Equal(web.MsgProfileUpdated + web.MsgVerifyNewAddress))
		Expect(r.body["user"]).To(HaveKeyWithValue("email", "ada@x.com"))
		Expect(r.body["user"]).To(HaveKeyWithValue("color", "#ABCDEF"))
		Expect(r.cookie).NotTo(BeNil())
		Expect(r.cookie.Value).NotTo(Equal(cookie))

		stale := call(http.MethodGet, "/user/profile", "", cookie)
		Expect(stale.status).To(Equal(http.StatusUnauthorized))

		cookie = r.cookie.Value
		r = call(http.MethodGet, "/user/profile", "", cookie)
		Expect(r.status).To(Equal(http.StatusOK))
		Expect(r.body["user"]).To(HaveKeyWithValue("name", "Ada L."))
		Expect(r.body["user"]).To(HaveKeyWithValue("email", "ada@x.com"))

		r = call(http.MethodPost, "/auth/login", `{"email":"ada@x.com","password":"pw1"}`, "")
		Expect(r.status).To(Equal(http.StatusBadRequest))
		Expect(r.body["error"]).To(Equal(auth.MsgVerifyFirst))
		Expect(r.cookie).To(BeNil())

		token := outbox.LastToken(mail.KindVerification, "ada@new.com")
		Expect(token).NotTo(BeEmpty())
		r = call(http.MethodGet, "/auth/verify-email?token="+token, "", "")
		Expect(r.status).To(Equal(http.StatusOK))
	})

	It("resets the password", func() {
		r := call(http.MethodPost, "/auth/forgot-password", `{"email":"ada@new.com"}`, "")
		Expect(r.status).To(Equal(http.StatusOK))

		token := outbox.LastToken(mail.KindPasswordReset, "ada@new.com")
		Expect(token).NotTo(BeEmpty())

		r = call(http.MethodPost, "/auth/reset-password", `{"token":"`+token+`","newPassword":"pw2"}`, "")
		Expect(r.status).To(Equal(http.StatusOK))

		r = call(http.MethodPost, "/auth/login", `{"email":"ada@new.com","password":"pw1"}`, "")
		Expect(r.status).To(Equal(http.StatusBadRequest))
		r = call(http.MethodPost, "/auth/login", `{"email":"ada@new.com","password":"pw2"}`, "")
		Expect(r.status).To(Equal(http.StatusOK))
	})

	It("logs out", func() {
		r := call(http.MethodPost, "/auth/logout", "", cookie)
		Expect(r.status).To(Equal(http.StatusOK))

		r = call(http.MethodGet, "/auth/check-session", "", cookie)
		Expect(r.body["loggedIn"]).To(BeFalse())
	})
})
