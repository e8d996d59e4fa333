package llm

import (
	"encoding/json"
	"time"
)

// ChatResponse represents a provider-agnostic, non-streaming chat completion
// response.
type ChatResponse struct {
	// Model that generated the response
	Model string `json:"model"`

	// Response timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// Choices in the order the provider returned them
	Choices []Choice `json:"choices"`

	// Token usage
	Usage *Usage `json:"usage,omitempty"`

	// RawResponse preserves the original response payload for debugging.
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Texts returns the text of every choice, in order.
func (r *ChatResponse) Texts() []string {
	texts := make([]string, 0, len(r.Choices))
	for _, c := range r.Choices {
		texts = append(texts, c.Text)
	}
	return texts
}

// Usage contains token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}
