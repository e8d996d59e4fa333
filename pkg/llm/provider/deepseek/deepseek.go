// Package deepseek provides the DeepSeek chat-completions provider.
package deepseek

import "github.com/papercomputeco/chatrelay/pkg/llm/provider/openai"

const (
	defaultModel    = "deepseek-chat"
	defaultEndpoint = "https://api.deepseek.com/chat/completions"
	endpointEnv     = "DEEPSEEK_BASE_URL"
)

// New returns the DeepSeek provider. DeepSeek speaks the OpenAI format;
// reasoning deltas ("reasoning_content") are not part of the relayed reply.
func New() *openai.Provider {
	return openai.NewCompatible("deepseek", defaultModel, defaultEndpoint, endpointEnv)
}
