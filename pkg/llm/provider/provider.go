// Package provider defines the upstream provider abstraction used by the
// relay and the registry of supported providers.
package provider

import (
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Provider describes one chat-completions provider: where requests go by
// default and how its responses are parsed.
type Provider interface {
	// Name returns the canonical provider name (e.g., "deepseek", "openai", "ollama")
	Name() string

	// DefaultModel is used when neither the caller nor the credential names a model.
	DefaultModel() string

	// DefaultEndpoint is the hardcoded completion URL for the provider.
	DefaultEndpoint() string

	// EndpointEnv names the environment variable that overrides the default
	// endpoint for the whole process, e.g. DEEPSEEK_BASE_URL.
	EndpointEnv() string

	// ParseResponse converts a complete, non-streaming response body into
	// the internal format.
	ParseResponse(payload []byte) (*llm.ChatResponse, error)

	// ParseStreamChunk converts the payload of a single "data:" line into
	// the internal format. Returns (nil, nil) if the chunk carries no
	// choice (e.g., a trailing usage chunk).
	ParseStreamChunk(payload []byte) (*llm.StreamChunk, error)
}
