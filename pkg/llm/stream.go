package llm

// StreamChunk represents a single chunk in a streaming response.
// This is the internal representation used by the relay after parsing
// provider-specific streaming formats.
type StreamChunk struct {
	// Model that generated the chunk
	Model string `json:"model"`

	// Content is the incremental text fragment of the first choice.
	Content string `json:"content"`

	// Index for providers that support multiple parallel completions
	Index int `json:"index,omitempty"`

	// FinishReason (only present on the final chunk)
	FinishReason string `json:"finish_reason,omitempty"`
}
