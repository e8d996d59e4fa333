package upstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
)

var _ = Describe("Builder", func() {
	var (
		env      map[string]string
		builder  *upstream.Builder
		messages []llm.Message
	)

	BeforeEach(func() {
		env = map[string]string{}
		builder = upstream.NewBuilder(&upstream.Config{
			Getenv: func(k string) string { return env[k] },
		})
		messages = []llm.Message{llm.NewTextMessage("user", "hello")}
	})

	It("uses provider defaults for a bare request", func() {
		req, err := builder.Build(messages, llm.Params{}, credential.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Provider.Name()).To(Equal("deepseek"))
		Expect(req.Endpoint).To(Equal("https://api.deepseek.com/chat/completions"))
		Expect(req.Payload.Model).To(Equal("deepseek-chat"))
		Expect(req.Payload.Stream).To(BeFalse())
	})

	DescribeTable("model precedence",
		func(caller, fromConfig, want string) {
			req, err := builder.Build(messages, llm.Params{Model: caller}, credential.Config{Model: fromConfig})
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Payload.Model).To(Equal(want))
		},
		Entry("caller wins", "deepseek-reasoner", "cfg-model", "deepseek-reasoner"),
		Entry("credential config next", "", "cfg-model", "cfg-model"),
		Entry("provider default last", "", "", "deepseek-chat"),
	)

	Describe("endpoint precedence", func() {
		BeforeEach(func() {
			builder = upstream.NewBuilder(&upstream.Config{
				Endpoints: map[string]string{"openai": "http://configured/v1/chat/completions"},
				Getenv:    func(k string) string { return env[k] },
			})
		})

		It("prefers the credential base url", func() {
			env["OPENAI_BASE_URL"] = "http://env/v1/chat/completions"
			req, err := builder.Build(messages, llm.Params{Provider: "openai"}, credential.Config{BaseURL: "http://cred/v1/chat/completions"})
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Endpoint).To(Equal("http://cred/v1/chat/completions"))
		})

		It("falls back to the environment variable", func() {
			env["OPENAI_BASE_URL"] = "http://env/v1/chat/completions"
			req, err := builder.Build(messages, llm.Params{Provider: "openai"}, credential.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Endpoint).To(Equal("http://env/v1/chat/completions"))
		})

		It("falls back to the configured endpoint", func() {
			req, err := builder.Build(messages, llm.Params{Provider: "openai"}, credential.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Endpoint).To(Equal("http://configured/v1/chat/completions"))
		})

		It("falls back to the provider default", func() {
			req, err := builder.Build(messages, llm.Params{Provider: "ollama"}, credential.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Endpoint).To(Equal("http://localhost:11434/v1/chat/completions"))
			Expect(req.Payload.Model).To(Equal("llama3.2"))
		})
	})

	It("copies only supplied generation parameters", func() {
		temp := 0.2
		n := 2
		req, err := builder.Build(messages, llm.Params{
			Temperature: &temp,
			N:           &n,
			EffortLevel: "high",
			Stream:      true,
		}, credential.Config{})
		Expect(err).NotTo(HaveOccurred())

		raw, err := json.Marshal(req.Payload)
		Expect(err).NotTo(HaveOccurred())

		var body map[string]any
		Expect(json.Unmarshal(raw, &body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("temperature", 0.2))
		Expect(body).To(HaveKeyWithValue("n", float64(2)))
		Expect(body).To(HaveKeyWithValue("reasoning_effort", "high"))
		Expect(body).To(HaveKeyWithValue("stream", true))
		Expect(body).NotTo(HaveKey("top_p"))
		Expect(body).NotTo(HaveKey("max_tokens"))
		Expect(body).NotTo(HaveKey("frequency_penalty"))
		Expect(body).NotTo(HaveKey("presence_penalty"))
	})

	It("normalizes the provider name", func() {
		req, err := builder.Build(messages, llm.Params{Provider: " OpenAI "}, credential.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Provider.Name()).To(Equal("openai"))
	})

	It("rejects an empty message list", func() {
		_, err := builder.Build(nil, llm.Params{}, credential.Config{})
		Expect(err).To(MatchError(upstream.ErrNoMessages))
	})

	It("rejects unknown providers", func() {
		_, err := builder.Build(messages, llm.Params{Provider: "nope"}, credential.Config{})
		Expect(err).To(MatchError(upstream.ErrUnknownProvider))
	})
})
