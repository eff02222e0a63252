// Package storagetest holds ginkgo specs every storage.Driver must pass.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/storage"
)

// Turn builds a turn with a text prompt and response.
func Turn(sessionID, streamID, prompt, response string, at time.Time) *llm.ConversationTurn {
	return &llm.ConversationTurn{
		SessionID:    sessionID,
		StreamID:     streamID,
		User:         "alice",
		Provider:     "openai",
		Prompt:       llm.NewTextMessage("user", prompt),
		Response:     llm.NewTextMessage("assistant", response),
		FinishReason: "stop",
		CreatedAt:    at,
	}
}

// DriverSpecs registers the shared driver specs. newDriver is called before
// each spec and must return an empty store.
func DriverSpecs(newDriver func() storage.Driver) {
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
		}
	})

	Describe("ClaimSession", func() {
		It("assigns the first claimant as owner", func() {
			owner, err := driver.ClaimSession(ctx, "s1", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(owner).To(Equal("alice"))
		})

		It("keeps the original owner on later claims", func() {
			_, err := driver.ClaimSession(ctx, "s1", "alice")
			Expect(err).NotTo(HaveOccurred())

			owner, err := driver.ClaimSession(ctx, "s1", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(owner).To(Equal("alice"))
		})
	})

	Describe("Owner", func() {
		It("returns NotFoundError for unknown sessions", func() {
			_, err := driver.Owner(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{SessionID: "missing"}))
		})

		It("returns the claimed owner", func() {
			_, err := driver.ClaimSession(ctx, "s1", "alice")
			Expect(err).NotTo(HaveOccurred())

			owner, err := driver.Owner(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(owner).To(Equal("alice"))
		})
	})

	Describe("SaveTurn and History", func() {
		It("returns an empty history for unknown sessions", func() {
			turns, err := driver.History(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})

		It("returns turns oldest first", func() {
			base := time.Unix(1700000000, 0)
			Expect(driver.SaveTurn(ctx, Turn("s1", "b", "second", "two", base.Add(time.Second)))).To(Succeed())
			Expect(driver.SaveTurn(ctx, Turn("s1", "a", "first", "one", base))).To(Succeed())
			Expect(driver.SaveTurn(ctx, Turn("s2", "c", "other", "three", base))).To(Succeed())

			turns, err := driver.History(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].StreamID).To(Equal("a"))
			Expect(turns[0].Prompt.GetText()).To(Equal("first"))
			Expect(turns[0].Response.GetText()).To(Equal("one"))
			Expect(turns[1].StreamID).To(Equal("b"))
			Expect(turns[1].CreatedAt.Equal(base.Add(time.Second))).To(BeTrue())
		})

		It("replaces a turn saved twice under one stream id", func() {
			at := time.Unix(1700000000, 0)
			Expect(driver.SaveTurn(ctx, Turn("s1", "a", "hi", "partial", at))).To(Succeed())

			final := Turn("s1", "a", "hi", "complete answer", at)
			final.Usage = &llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}
			Expect(driver.SaveTurn(ctx, final)).To(Succeed())

			turns, err := driver.History(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Response.GetText()).To(Equal("complete answer"))
			Expect(turns[0].Usage).To(Equal(&llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}))
		})

		It("rejects nil turns", func() {
			Expect(driver.SaveTurn(ctx, nil)).NotTo(Succeed())
		})

		It("flattens history into request messages", func() {
			at := time.Unix(1700000000, 0)
			Expect(driver.SaveTurn(ctx, Turn("s1", "a", "hi", "hello", at))).To(Succeed())

			turns, err := driver.History(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())

			msgs := storage.Messages(turns)
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal("user"))
			Expect(msgs[1].Role).To(Equal("assistant"))
		})
	})
}
