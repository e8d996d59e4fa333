package credential_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
)

var _ = Describe("Resolver", func() {
	var (
		ctx      context.Context
		store    *inmemory.Driver
		resolver *credential.Resolver
	)

	create := func(c *storage.Credential) int64 {
		id, err := store.CreateCredential(ctx, c)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		resolver = credential.NewResolver(store, logger.Nop())
	})

	Describe("explicit credential id", func() {
		It("returns the caller's own credential", func() {
			id := create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "sk-a"})

			res, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{ExplicitID: &id})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Secret()).To(Equal("sk-a"))
		})

		It("rejects another caller's private credential", func() {
			id := create(&storage.Credential{OwnerID: "bob", Provider: "deepseek", Secret: "sk-b"})

			_, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{ExplicitID: &id})
			Expect(err).To(MatchError(credential.ErrCredentialNotFound))
		})

		It("rejects a shared id that points to a private credential", func() {
			id := create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "sk-a"})

			_, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{PreferShared: true, ExplicitID: &id})
			Expect(err).To(MatchError(credential.ErrCredentialNotFound))
		})

		It("accepts a shared id for any caller", func() {
			id := create(&storage.Credential{Provider: "deepseek", Secret: "sk-shared", Shared: true})

			res, err := resolver.Resolve(ctx, "carol", "deepseek", credential.Options{PreferShared: true, ExplicitID: &id})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Secret()).To(Equal("sk-shared"))
		})

		It("rejects a provider mismatch", func() {
			id := create(&storage.Credential{OwnerID: "alice", Provider: "openai", Secret: "sk-a"})

			_, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{ExplicitID: &id})
			Expect(err).To(MatchError(credential.ErrCredentialNotFound))
		})

		It("rejects unknown ids", func() {
			id := int64(404)

			_, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{ExplicitID: &id})
			Expect(err).To(MatchError(credential.ErrCredentialNotFound))
		})
	})

	Describe("shared pool", func() {
		It("returns the newest shared credential", func() {
			create(&storage.Credential{Provider: "deepseek", Secret: "old", Shared: true})
			create(&storage.Credential{Provider: "deepseek", Secret: "new", Shared: true})

			res, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{PreferShared: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Secret()).To(Equal("new"))
		})

		It("fails when the pool is empty", func() {
			create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "mine"})

			_, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{PreferShared: true})
			Expect(err).To(MatchError(credential.ErrNoSharedCredential))
		})
	})

	Describe("owned credentials", func() {
		It("returns the caller's newest credential for the provider", func() {
			create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a1"})
			create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a2"})
			create(&storage.Credential{OwnerID: "alice", Provider: "openai", Secret: "a3"})

			res, err := resolver.Resolve(ctx, "alice", "DeepSeek", credential.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Secret()).To(Equal("a2"))
			Expect(res.Provider).To(Equal("deepseek"))
		})

		It("does not fall back to the shared pool", func() {
			create(&storage.Credential{Provider: "deepseek", Secret: "shared", Shared: true})

			_, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{})
			Expect(err).To(MatchError(credential.ErrNoCredentialAvailable))
		})

		It("defaults the provider to deepseek", func() {
			create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a1"})

			res, err := resolver.Resolve(ctx, "alice", "", credential.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Provider).To(Equal("deepseek"))
		})
	})

	Describe("configuration", func() {
		It("parses the credential config once", func() {
			create(&storage.Credential{
				OwnerID:  "alice",
				Provider: "deepseek",
				Secret:   "a1",
				Config:   `{"base_url":"http://proxy.local/v1/chat/completions","model":"deepseek-reasoner"}`,
			})

			res, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Config.BaseURL).To(Equal("http://proxy.local/v1/chat/completions"))
			Expect(res.Config.Model).To(Equal("deepseek-reasoner"))
		})

		It("treats invalid config as empty", func() {
			create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a1", Config: "{not json"})

			res, err := resolver.Resolve(ctx, "alice", "deepseek", credential.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Config).To(Equal(credential.Config{}))
		})

		It("logs invalid config without a logger", func() {
			create(&storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a1", Config: "{not json"})

			res, err := credential.NewResolver(store, nil).Resolve(ctx, "alice", "deepseek", credential.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Secret()).To(Equal("a1"))
		})
	})
})

var _ = Describe("ParseConfig", func() {
	It("returns an empty config for blank text", func() {
		cfg, err := credential.ParseConfig("  ")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(credential.Config{}))
	})

	It("returns an error for invalid json", func() {
		_, err := credential.ParseConfig("[")
		Expect(err).To(HaveOccurred())
	})
})
