// Package openai implements the OpenAI Chat Completions wire format. Other
// providers that speak the same format reuse it through NewCompatible.
package openai

import (
	"encoding/json"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const (
	defaultModel    = "gpt-4o-mini"
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	endpointEnv     = "OPENAI_BASE_URL"
)

// Provider parses chat-completions responses and carries the defaults of one
// provider speaking that format.
type Provider struct {
	name     string
	model    string
	endpoint string
	env      string
}

// New returns the OpenAI provider.
func New() *Provider {
	return NewCompatible("openai", defaultModel, defaultEndpoint, endpointEnv)
}

// NewCompatible returns a provider for an OpenAI-compatible service.
func NewCompatible(name, model, endpoint, env string) *Provider {
	return &Provider{name: name, model: model, endpoint: endpoint, env: env}
}

func (o *Provider) Name() string            { return o.name }
func (o *Provider) DefaultModel() string    { return o.model }
func (o *Provider) DefaultEndpoint() string { return o.endpoint }
func (o *Provider) EndpointEnv() string     { return o.env }

func (o *Provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp openaiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	choices := make([]llm.Choice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		msg := llm.Message{Role: c.Message.Role, Content: c.Message.Content}
		choices = append(choices, llm.Choice{
			Index:        c.Index,
			Text:         msg.GetText(),
			FinishReason: c.FinishReason,
		})
	}

	var usage *llm.Usage
	if resp.Usage != nil {
		usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	result := &llm.ChatResponse{
		Model:       resp.Model,
		Choices:     choices,
		Usage:       usage,
		RawResponse: payload,
	}
	if resp.Created > 0 {
		result.CreatedAt = time.Unix(resp.Created, 0)
	}

	return result, nil
}

func (o *Provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	var chunk openaiStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}

	if len(chunk.Choices) == 0 {
		return nil, nil
	}

	choice := chunk.Choices[0]
	result := &llm.StreamChunk{
		Model:   chunk.Model,
		Content: choice.Delta.Content,
		Index:   choice.Index,
	}
	if choice.FinishReason != nil {
		result.FinishReason = *choice.FinishReason
	}

	return result, nil
}
