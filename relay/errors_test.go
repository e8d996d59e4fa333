package relay_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/relay"
)

var _ = Describe("Kind", func() {
	DescribeTable("maps errors to kinds",
		func(err error, kind string) {
			Expect(relay.Kind(err)).To(Equal(kind))
		},
		Entry("nil", nil, ""),
		Entry("invalid request", fmt.Errorf("%w: text required", relay.ErrInvalidRequest), relay.KindInvalidRequest),
		Entry("no credential", fmt.Errorf("%w for provider %q", credential.ErrNoCredentialAvailable, "openai"), relay.KindNoCredentialAvailable),
		Entry("no shared credential", credential.ErrNoSharedCredential, relay.KindNoSharedCredential),
		Entry("credential not found", fmt.Errorf("%w: 7", credential.ErrCredentialNotFound), relay.KindCredentialNotFound),
		Entry("conversation not found", fmt.Errorf("%w: 3", relay.ErrConversationNotFound), relay.KindNotFound),
		Entry("upstream status", &relay.UpstreamError{Status: 500, Body: "boom"}, relay.KindUpstream),
		Entry("wrapped upstream", fmt.Errorf("relay: %w", &relay.UpstreamError{Err: errors.New("refused")}), relay.KindUpstream),
		Entry("disconnect", relay.ErrClientDisconnected, relay.KindClientDisconnected),
		Entry("anything else", errors.New("disk full"), relay.KindInternal),
	)
})

var _ = Describe("UpstreamError", func() {
	It("describes a status failure", func() {
		err := &relay.UpstreamError{Status: 502}
		Expect(err.Error()).To(Equal("upstream returned status 502"))
	})

	It("unwraps a transport failure", func() {
		cause := errors.New("connection refused")
		err := &relay.UpstreamError{Err: cause}
		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("connection refused"))
	})
})

var _ = Describe("State", func() {
	It("names every state", func() {
		Expect(relay.StateIdle.String()).To(Equal("idle"))
		Expect(relay.StateStreaming.String()).To(Equal("streaming"))
		Expect(relay.StateCancelled.String()).To(Equal("cancelled"))
	})
})
