package openai_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider/openai"
)

var _ = Describe("OpenAI Provider", func() {
	var p provider.Provider

	BeforeEach(func() {
		p = openai.New()
	})

	Describe("Name", func() {
		It("returns 'openai'", func() {
			Expect(p.Name()).To(Equal("openai"))
		})
	})

	Describe("defaults", func() {
		It("targets the public chat completions endpoint", func() {
			Expect(p.DefaultEndpoint()).To(Equal("https://api.openai.com/v1/chat/completions"))
			Expect(p.DefaultModel()).NotTo(BeEmpty())
			Expect(p.EndpointEnv()).To(Equal("OPENAI_BASE_URL"))
		})
	})

	Describe("ParseResponse", func() {
		It("collects every choice in order", func() {
			payload := []byte(`{
				"id": "chatcmpl-123",
				"object": "chat.completion",
				"created": 1677652288,
				"model": "gpt-4o-mini",
				"choices": [
					{"index": 0, "message": {"role": "assistant", "content": "first"}, "finish_reason": "stop"},
					{"index": 1, "message": {"role": "assistant", "content": "second"}, "finish_reason": "stop"}
				],
				"usage": {"prompt_tokens": 9, "completion_tokens": 12, "total_tokens": 21}
			}`)

			resp, err := p.ParseResponse(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Model).To(Equal("gpt-4o-mini"))
			Expect(resp.Texts()).To(Equal([]string{"first", "second"}))
			Expect(resp.Choices[0].FinishReason).To(Equal("stop"))
			Expect(resp.Usage.TotalTokens).To(Equal(21))
			Expect(resp.CreatedAt.Unix()).To(Equal(int64(1677652288)))
		})

		It("returns no choices for an empty choices array", func() {
			resp, err := p.ParseResponse([]byte(`{"model": "m", "choices": []}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Choices).To(BeEmpty())
		})

		It("treats null content as empty text", func() {
			resp, err := p.ParseResponse([]byte(`{"choices": [{"index": 0, "message": {"role": "assistant", "content": null}}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Texts()).To(Equal([]string{""}))
		})

		It("joins text parts of array content", func() {
			resp, err := p.ParseResponse([]byte(`{"choices": [{"index": 0, "message": {"role": "assistant", "content": [{"type":"text","text":"a"},{"type":"text","text":"b"}]}}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Texts()).To(Equal([]string{"ab"}))
		})

		It("returns an error for invalid JSON", func() {
			_, err := p.ParseResponse([]byte(`not json`))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseStreamChunk", func() {
		It("extracts the first choice's delta content", func() {
			chunk, err := p.ParseStreamChunk([]byte(`{"id":"c1","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"He"},"finish_reason":null}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk.Content).To(Equal("He"))
			Expect(chunk.FinishReason).To(BeEmpty())
		})

		It("reports the finish reason on the final chunk", func() {
			chunk, err := p.ParseStreamChunk([]byte(`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk.Content).To(BeEmpty())
			Expect(chunk.FinishReason).To(Equal("stop"))
		})

		It("skips chunks without choices", func() {
			chunk, err := p.ParseStreamChunk([]byte(`{"usage":{"total_tokens":3},"choices":[]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk).To(BeNil())
		})

		It("returns an error for non-JSON payloads", func() {
			_, err := p.ParseStreamChunk([]byte(`[DONE]`))
			Expect(err).To(HaveOccurred())
		})
	})
})
