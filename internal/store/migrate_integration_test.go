// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hourlog/hourlog/internal/store"
)

var _ = Describe("Migrator", func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("hourlog_test"),
			postgres.WithUsername("hourlog"),
			postgres.WithPassword("hourlog"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = container.Terminate(ctx)
	})

	It("runs a full up/down cycle", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(0)))
		Expect(dirty).To(BeFalse())

		Expect(migrator.Up()).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))

		Expect(migrator.Down()).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(0)))
	})

	It("creates the users and tasks tables", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()
		Expect(migrator.Up()).To(Succeed())

		pool, err := store.Connect(ctx, connStr, store.DefaultConnectOptions)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		for _, table := range []string{"users", "tasks"} {
			var exists bool
			err := pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
				table).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue(), table)
		}
	})

	It("fails fast when the database is gone", func() {
		Expect(container.Terminate(ctx)).To(Succeed())

		_, err := store.Connect(ctx, connStr, store.ConnectOptions{
			Retries:   1,
			BaseDelay: 10 * time.Millisecond,
		})
		Expect(err).To(HaveOccurred())
	})
})
