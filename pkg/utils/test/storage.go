package testutils

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// DescribeStorageDriver registers the behavioral specs every storage.Driver
// must satisfy. newDriver is called once per spec; the returned driver is
// closed after the spec.
func DescribeStorageDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" storage contract", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
				driver = nil
			}
		})

		Describe("conversations", func() {
			It("creates and fetches a conversation", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "New chat")
				Expect(err).NotTo(HaveOccurred())
				Expect(conv.ID).To(BeNumerically(">", 0))

				got, err := driver.GetConversation(ctx, conv.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.OwnerID).To(Equal("alice"))
				Expect(got.Title).To(Equal("New chat"))
			})

			It("returns a not found error for unknown ids", func() {
				_, err := driver.GetConversation(ctx, 9999)
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("lists only the owner's conversations, most recently updated first", func() {
				first, err := driver.CreateConversation(ctx, "alice", "first")
				Expect(err).NotTo(HaveOccurred())
				second, err := driver.CreateConversation(ctx, "alice", "second")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateConversation(ctx, "bob", "other")
				Expect(err).NotTo(HaveOccurred())

				convs, err := driver.ListConversations(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(convs).To(HaveLen(2))
				Expect(convs[0].ID).To(Equal(second.ID))

				Expect(driver.TouchConversation(ctx, first.ID)).To(Succeed())

				convs, err = driver.ListConversations(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(convs[0].ID).To(Equal(first.ID))
			})

			It("renames a conversation", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "New chat")
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.RenameConversation(ctx, conv.ID, "Trip planning")).To(Succeed())

				got, err := driver.GetConversation(ctx, conv.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Title).To(Equal("Trip planning"))
				Expect(got.UpdatedAt).NotTo(BeTemporally("<", conv.UpdatedAt))
			})

			It("fails to rename or touch unknown conversations", func() {
				Expect(storage.IsNotFound(driver.RenameConversation(ctx, 9999, "x"))).To(BeTrue())
				Expect(storage.IsNotFound(driver.TouchConversation(ctx, 9999))).To(BeTrue())
			})

			It("deletes a conversation together with its turns", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "New chat")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AppendTurn(ctx, conv.ID, "alice", "user", "hi")
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.DeleteConversation(ctx, conv.ID)).To(Succeed())

				_, err = driver.GetConversation(ctx, conv.ID)
				Expect(storage.IsNotFound(err)).To(BeTrue())

				turns, err := driver.ListTurns(ctx, conv.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(BeEmpty())

				Expect(storage.IsNotFound(driver.DeleteConversation(ctx, conv.ID))).To(BeTrue())
			})
		})

		Describe("turns", func() {
			It("returns turns in insertion order with increasing ids", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "New chat")
				Expect(err).NotTo(HaveOccurred())

				id1, err := driver.AppendTurn(ctx, conv.ID, "alice", "user", "hello")
				Expect(err).NotTo(HaveOccurred())
				id2, err := driver.AppendTurn(ctx, conv.ID, "alice", "assistant", "Hello")
				Expect(err).NotTo(HaveOccurred())
				id3, err := driver.AppendTurn(ctx, conv.ID, "alice", "assistant", "")
				Expect(err).NotTo(HaveOccurred())
				Expect(id2).To(BeNumerically(">", id1))
				Expect(id3).To(BeNumerically(">", id2))

				turns, err := driver.ListTurns(ctx, conv.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(3))
				Expect(turns[0].Role).To(Equal("user"))
				Expect(turns[0].Content).To(Equal("hello"))
				Expect(turns[1].Content).To(Equal("Hello"))
				Expect(turns[2].Content).To(BeEmpty())
				Expect(turns[2].ConversationID).To(Equal(conv.ID))
			})

			It("keeps conversations isolated", func() {
				a, err := driver.CreateConversation(ctx, "alice", "a")
				Expect(err).NotTo(HaveOccurred())
				b, err := driver.CreateConversation(ctx, "alice", "b")
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.AppendTurn(ctx, a.ID, "alice", "user", "in a")
				Expect(err).NotTo(HaveOccurred())

				turns, err := driver.ListTurns(ctx, b.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(BeEmpty())
			})
		})

		Describe("credentials", func() {
			It("creates a credential and fills in id and created_at", func() {
				c := &storage.Credential{OwnerID: "alice", Provider: "deepseek", Label: "mine", Secret: "sk-a"}
				id, err := driver.CreateCredential(ctx, c)
				Expect(err).NotTo(HaveOccurred())
				Expect(c.ID).To(Equal(id))
				Expect(c.CreatedAt.IsZero()).To(BeFalse())

				got, err := driver.GetCredential(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Secret).To(Equal("sk-a"))
				Expect(got.OwnerID).To(Equal("alice"))
				Expect(got.Shared).To(BeFalse())
			})

			It("stores shared credentials without an owner", func() {
				id, err := driver.CreateCredential(ctx, &storage.Credential{
					Provider: "deepseek",
					Secret:   "sk-shared",
					Config:   `{"model":"deepseek-reasoner"}`,
					Shared:   true,
				})
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.GetCredential(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.OwnerID).To(BeEmpty())
				Expect(got.Shared).To(BeTrue())
				Expect(got.Config).To(Equal(`{"model":"deepseek-reasoner"}`))
			})

			It("returns the most recent shared credential for a provider", func() {
				_, err := driver.CreateCredential(ctx, &storage.Credential{Provider: "deepseek", Secret: "old", Shared: true})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateCredential(ctx, &storage.Credential{Provider: "deepseek", Secret: "new", Shared: true})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateCredential(ctx, &storage.Credential{Provider: "openai", Secret: "other", Shared: true})
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.LatestSharedCredential(ctx, "deepseek")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Secret).To(Equal("new"))

				_, err = driver.LatestSharedCredential(ctx, "ollama")
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("returns the most recent owned credential for a provider", func() {
				_, err := driver.CreateCredential(ctx, &storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a1"})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateCredential(ctx, &storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a2"})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateCredential(ctx, &storage.Credential{OwnerID: "bob", Provider: "deepseek", Secret: "b1"})
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.LatestOwnedCredential(ctx, "alice", "deepseek")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Secret).To(Equal("a2"))

				_, err = driver.LatestOwnedCredential(ctx, "carol", "deepseek")
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("lists owned and shared credentials newest first", func() {
				_, err := driver.CreateCredential(ctx, &storage.Credential{Provider: "deepseek", Secret: "s", Shared: true})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateCredential(ctx, &storage.Credential{OwnerID: "alice", Provider: "openai", Secret: "a"})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateCredential(ctx, &storage.Credential{OwnerID: "bob", Provider: "openai", Secret: "b"})
				Expect(err).NotTo(HaveOccurred())

				creds, err := driver.ListCredentials(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(creds).To(HaveLen(2))
				Expect(creds[0].Secret).To(Equal("a"))
				Expect(creds[1].Secret).To(Equal("s"))
			})

			It("deletes credentials", func() {
				id, err := driver.CreateCredential(ctx, &storage.Credential{OwnerID: "alice", Provider: "deepseek", Secret: "a"})
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.DeleteCredential(ctx, id)).To(Succeed())

				_, err = driver.GetCredential(ctx, id)
				Expect(storage.IsNotFound(err)).To(BeTrue())
				Expect(storage.IsNotFound(driver.DeleteCredential(ctx, id))).To(BeTrue())
			})
		})
	})
}
