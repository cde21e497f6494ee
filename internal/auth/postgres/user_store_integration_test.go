// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/auth/memory"
	"github.com/hourlog/hourlog/internal/auth/postgres"
	"github.com/hourlog/hourlog/pkg/errutil"
)

var _ = Describe("UserStore", func() {
	var (
		ctx   context.Context
		users *postgres.UserStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		users = postgres.NewUserStore(testPool)
		_, err := testPool.Exec(ctx, `DELETE FROM users`)
		Expect(err).NotTo(HaveOccurred())
	})

	newUser := func(name string, email *string) *auth.User {
		u, err := auth.NewUser(name, "$argon2id$stub", email)
		Expect(err).NotTo(HaveOccurred())
		u.CreatedAt = u.CreatedAt.UTC().Truncate(time.Microsecond)
		u.UpdatedAt = u.CreatedAt
		return u
	}

	It("stores and finds users by exact username", func() {
		email := "alice@example.com"
		u := newUser("alice", &email)
		Expect(users.Create(ctx, u)).To(Succeed())

		found, err := users.FindByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(u.ID))
		Expect(*found.Email).To(Equal(email))
		Expect(found.CreatedAt.Equal(u.CreatedAt)).To(BeTrue())

		_, err = users.FindByUsername(ctx, "ALICE")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects duplicate usernames and emails", func() {
		email := "a@example.com"
		Expect(users.Create(ctx, newUser("alice", &email))).To(Succeed())

		err := users.Create(ctx, newUser("alice", nil))
		Expect(errutil.Code(err)).To(Equal(auth.CodeDuplicateUsername))

		err = users.Create(ctx, newUser("bob", &email))
		Expect(errutil.Code(err)).To(Equal(auth.CodeDuplicateEmail))

		Expect(users.Create(ctx, newUser("carol", nil))).To(Succeed())
		Expect(users.Create(ctx, newUser("dave", nil))).To(Succeed())
	})

	It("lets exactly one concurrent signup win", func() {
		const n = 8
		var wg sync.WaitGroup
		results := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- users.Create(ctx, newUser("racer", nil))
			}()
		}
		wg.Wait()
		close(results)

		wins, dups := 0, 0
		for err := range results {
			switch {
			case err == nil:
				wins++
			case errutil.HasCode(err, auth.CodeDuplicateUsername):
				dups++
			}
		}
		Expect(wins).To(Equal(1))
		Expect(dups).To(Equal(n - 1))
	})

	It("updates password hashes", func() {
		Expect(users.Create(ctx, newUser("alice", nil))).To(Succeed())
		Expect(users.UpdatePasswordHash(ctx, "alice", "$argon2id$new")).To(Succeed())

		found, err := users.FindByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(found.PasswordHash).To(Equal("$argon2id$new"))

		Expect(users.UpdatePasswordHash(ctx, "ghost", "x")).To(MatchError(auth.ErrNotFound))
	})

	It("backs the full auth flow", func() {
		kv := memory.NewKV()
		svc, err := auth.NewService(auth.ServiceDeps{
			Users:    users,
			Hasher:   auth.NewArgon2idHasherWithParams(auth.Argon2Params{Memory: 1024, Threads: 1}),
			Sessions: auth.NewSessionRegistry(kv),
			Resets:   auth.NewResetRegistry(kv, 0),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Signup(ctx, "alice", "secret1", nil)
		Expect(err).NotTo(HaveOccurred())

		code, err := svc.RequestReset(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.ConfirmReset(ctx, "alice", code, "newpass1")).To(Succeed())

		res, err := svc.Login(ctx, "alice", "newpass1")
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Authorize(ctx, res.SessionID)
		Expect(err).NotTo(HaveOccurred())

		n, err := users.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})
})
