package llm

// ChatRequest is the chat-completions payload sent upstream.
// Optional generation parameters are pointers so that only values the caller
// supplied are serialized, leaving the provider's own defaults in place
// otherwise.
type ChatRequest struct {
	// Model name (e.g., "deepseek-chat", "gpt-4o-mini", "llama3.2")
	Model string `json:"model"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// Whether to stream the response
	Stream bool `json:"stream"`

	// Generation parameters
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	N                *int     `json:"n,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`

	// ReasoningEffort carries the caller's effort level verbatim.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
}
