// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

//go:build integration

package rediskv_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/auth/rediskv"
)

var _ = Describe("KV", func() {
	var (
		ctx context.Context
		kv  *rediskv.KV
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		kv, err = rediskv.New(rediskv.Options{
			Addr:   redisAddr,
			Prefix: "test:" + ulid.Make().String() + ":",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(kv.Ping(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(kv.Close()).To(Succeed())
	})

	It("reports missing keys as not found without tripping the breaker", func() {
		for range 10 {
			_, err := kv.Get(ctx, "missing")
			Expect(err).To(MatchError(auth.ErrNotFound))
		}
		Expect(kv.Ping(ctx)).To(Succeed())
	})

	It("stores, overwrites and deletes values", func() {
		Expect(kv.Set(ctx, "k", []byte("one"), 0)).To(Succeed())
		Expect(kv.Set(ctx, "k", []byte("two"), 0)).To(Succeed())

		v, err := kv.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]byte("two")))

		Expect(kv.Delete(ctx, "k")).To(Succeed())
		Expect(kv.Delete(ctx, "k")).To(Succeed())
		_, err = kv.Get(ctx, "k")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("expires entries after their ttl", func() {
		Expect(kv.Set(ctx, "short", []byte("v"), 100*time.Millisecond)).To(Succeed())
		Eventually(func() error {
			_, err := kv.Get(ctx, "short")
			return err
		}).WithTimeout(2 * time.Second).Should(MatchError(auth.ErrNotFound))
	})

	It("only sets absent keys with SetNX", func() {
		stored, err := kv.SetNX(ctx, "nx", []byte("first"), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(BeTrue())

		stored, err = kv.SetNX(ctx, "nx", []byte("second"), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(BeFalse())

		v, err := kv.Get(ctx, "nx")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]byte("first")))
	})

	It("deletes only on matching value", func() {
		Expect(kv.Set(ctx, "cad", []byte("v1"), 0)).To(Succeed())

		deleted, err := kv.CompareAndDelete(ctx, "cad", []byte("other"))
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeFalse())

		deleted, err = kv.CompareAndDelete(ctx, "cad", []byte("v1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeTrue())

		deleted, err = kv.CompareAndDelete(ctx, "cad", []byte("v1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeFalse())
	})

	It("lets exactly one concurrent compare-and-delete win", func() {
		Expect(kv.Set(ctx, "race", []byte("token"), 0)).To(Succeed())

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				ok, err := kv.CompareAndDelete(ctx, "race", []byte("token"))
				Expect(err).NotTo(HaveOccurred())
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		Expect(wins.Load()).To(Equal(int32(1)))
	})

	It("backs a session registry end to end", func() {
		sessions := auth.NewSessionRegistry(kv)
		p := auth.Principal{Username: "alice", UserID: ulid.Make()}

		s, token, err := sessions.Create(ctx, p)
		Expect(err).NotTo(HaveOccurred())

		found, err := sessions.Lookup(ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Principal()).To(Equal(p))
		Expect(found.TokenHash).To(Equal(s.TokenHash))

		Expect(sessions.Delete(ctx, token)).To(Succeed())
		_, err = sessions.Lookup(ctx, token)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
