// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/firrel/regdemo/internal/store"
)

var _ = Describe("Schema", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		pool      *pgxpool.Pool
	)

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
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("reports ready", func() {
		Expect(store.Ready(pool, time.Second)()).To(BeTrue())
	})

	Describe("users", func() {
		insert := func(id, email, state string) error {
			_, err := pool.Exec(ctx,
				`INSERT INTO users (id, name, email, password_hash, color, verification_state)
				 VALUES ($1, 'Ada', $2, 'h', '#1A2B3C', $3)`, id, email, state)
			return err
		}

		It("rejects duplicate emails", func() {
			Expect(insert("u1", "dup@example.com", "verified")).To(Succeed())
			Expect(insert("u2", "dup@example.com", "verified")).NotTo(Succeed())
		})

		It("rejects unknown verification states", func() {
			Expect(insert("u3", "state@example.com", "maybe")).NotTo(Succeed())
		})

		It("rejects a token without an expiry", func() {
			_, err := pool.Exec(ctx,
				`INSERT INTO users (id, name, email, password_hash, color, reset_token_hash)
				 VALUES ('u4', 'Ada', 'pair@example.com', 'h', '#1A2B3C', 'hash')`)
			Expect(err).To(HaveOccurred())
		})

		It("rejects malformed colors", func() {
			_, err := pool.Exec(ctx,
				`INSERT INTO users (id, name, email, password_hash, color)
				 VALUES ('u5', 'Ada', 'color@example.com', 'h', 'blue')`)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("sessions", func() {
		It("are removed with their user", func() {
			_, err := pool.Exec(ctx,
				`INSERT INTO users (id, name, email, password_hash, color)
				 VALUES ('owner', 'Ada', 'owner@example.com', 'h', '#1A2B3C')`)
			Expect(err).NotTo(HaveOccurred())
			_, err = pool.Exec(ctx,
				`INSERT INTO sessions (id, token_hash, user_id, user_name, user_email, user_color, expires_at)
				 VALUES ('s1', 'th', 'owner', 'Ada', 'owner@example.com', '#1A2B3C', NOW() + INTERVAL '1 day')`)
			Expect(err).NotTo(HaveOccurred())

			_, err = pool.Exec(ctx, `DELETE FROM users WHERE id = 'owner'`)
			Expect(err).NotTo(HaveOccurred())

			var n int
			Expect(pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE id = 's1'`).Scan(&n)).To(Succeed())
			Expect(n).To(Equal(0))
		})
	})
})
