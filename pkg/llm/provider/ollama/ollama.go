// Package ollama provides the Ollama provider through its OpenAI-compatible
// chat-completions endpoint.
package ollama

import "github.com/papercomputeco/chatrelay/pkg/llm/provider/openai"

const (
	defaultModel    = "llama3.2"
	defaultEndpoint = "http://localhost:11434/v1/chat/completions"
	endpointEnv     = "OLLAMA_BASE_URL"
)

// New returns the Ollama provider.
func New() *openai.Provider {
	return openai.NewCompatible("ollama", defaultModel, defaultEndpoint, endpointEnv)
}
