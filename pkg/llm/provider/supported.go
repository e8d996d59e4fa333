package provider

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm/provider/deepseek"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider/ollama"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	DeepSeek = "deepseek"
	OpenAI   = "openai"
	Ollama   = "ollama"
)

// Default is the provider used when a request does not name one.
const Default = DeepSeek

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{DeepSeek, OpenAI, Ollama}
}

// IsSupported reports whether name is a known provider.
func IsSupported(name string) bool {
	_, err := New(name)
	return err == nil
}

// Normalize lower-cases and trims a provider name, falling back to Default
// when it is empty.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default
	}
	return name
}

// New creates a new Provider instance for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string) (Provider, error) {
	switch providerType {
	case DeepSeek:
		return deepseek.New(), nil
	case OpenAI:
		return openai.New(), nil
	case Ollama:
		return ollama.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}

// Registry returns one instance of every supported provider keyed by name.
func Registry() map[string]Provider {
	reg := make(map[string]Provider, len(SupportedProviders()))
	for _, name := range SupportedProviders() {
		p, _ := New(name)
		reg[name] = p
	}
	return reg
}
