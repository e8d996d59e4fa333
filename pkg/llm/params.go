package llm

// Params are the generation and routing parameters a caller attaches to a
// send request. Every field is optional.
type Params struct {
	Model            string   `json:"model,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	N                *int     `json:"n,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	EffortLevel      string   `json:"effort_level,omitempty"`

	Stream bool `json:"stream,omitempty"`

	// ContextLength is the character budget for the upstream turn list.
	// Zero or negative means no budget.
	ContextLength int `json:"context_length,omitempty"`

	SendImages   bool   `json:"send_images,omitempty"`
	ImageQuality string `json:"image_quality,omitempty"`

	Provider           string `json:"provider,omitempty"`
	CredentialID       *int64 `json:"credential_id,omitempty"`
	UseShared          bool   `json:"use_shared,omitempty"`
	SharedCredentialID *int64 `json:"shared_credential_id,omitempty"`
}
