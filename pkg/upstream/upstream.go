// Package upstream turns an assembled turn list and caller parameters into
// the provider payload and the endpoint it is sent to.
package upstream

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
)

var (
	// ErrNoMessages is returned when there is nothing to send.
	ErrNoMessages = errors.New("no messages to send")

	// ErrUnknownProvider is returned for provider names outside the registry.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Request is a ready-to-send upstream call.
type Request struct {
	Provider provider.Provider
	Endpoint string
	Payload  llm.ChatRequest
}

// Config is the configuration for a Builder.
type Config struct {
	// Endpoints holds configured per-provider endpoint overrides keyed by
	// provider name (the upstream.<provider>_base_url settings).
	Endpoints map[string]string

	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// Builder builds upstream requests.
type Builder struct {
	registry  map[string]provider.Provider
	endpoints map[string]string
	getenv    func(string) string
}

// NewBuilder creates a Builder over the supported provider registry.
func NewBuilder(c *Config) *Builder {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	endpoints := make(map[string]string, len(c.Endpoints))
	for name, url := range c.Endpoints {
		endpoints[provider.Normalize(name)] = strings.TrimSpace(url)
	}

	return &Builder{
		registry:  provider.Registry(),
		endpoints: endpoints,
		getenv:    getenv,
	}
}

// Build resolves the provider named in params and produces the payload.
// The model is taken from params, then cfg, then the provider default. The
// endpoint is taken from cfg, then the provider's environment variable, then
// the configured override, then the provider default.
func (b *Builder) Build(messages []llm.Message, params llm.Params, cfg credential.Config) (*Request, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	name := provider.Normalize(params.Provider)
	p, ok := b.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownProvider, name, provider.SupportedProviders())
	}

	return &Request{
		Provider: p,
		Endpoint: b.endpoint(p, cfg),
		Payload: llm.ChatRequest{
			Model:            firstNonEmpty(params.Model, cfg.Model, p.DefaultModel()),
			Messages:         messages,
			Stream:           params.Stream,
			Temperature:      params.Temperature,
			TopP:             params.TopP,
			MaxTokens:        params.MaxTokens,
			N:                params.N,
			FrequencyPenalty: params.FrequencyPenalty,
			PresencePenalty:  params.PresencePenalty,
			ReasoningEffort:  params.EffortLevel,
		},
	}, nil
}

func (b *Builder) endpoint(p provider.Provider, cfg credential.Config) string {
	return firstNonEmpty(
		cfg.BaseURL,
		b.getenv(p.EndpointEnv()),
		b.endpoints[p.Name()],
		p.DefaultEndpoint(),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
