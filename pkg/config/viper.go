package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATRELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATRELAY_API_LISTEN, CHATRELAY_RELAY_ENABLE_VISION, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHATRELAY_API_LISTEN, CHATRELAY_STORAGE_DRIVER, etc.
	v.SetEnvPrefix("CHATRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.identity_header", d.API.IdentityHeader)

	// MCP
	v.SetDefault("mcp.listen", d.MCP.Listen)

	// Relay
	v.SetDefault("relay.default_provider", d.Relay.DefaultProvider)
	v.SetDefault("relay.enable_vision", d.Relay.EnableVision)
	v.SetDefault("relay.upstream_timeout", d.Relay.UpstreamTimeout)
	v.SetDefault("relay.uploads_dir", d.Relay.UploadsDir)

	// Upstream endpoints
	v.SetDefault("upstream.deepseek_base_url", d.Upstream.DeepSeekBaseURL)
	v.SetDefault("upstream.openai_base_url", d.Upstream.OpenAIBaseURL)
	v.SetDefault("upstream.ollama_base_url", d.Upstream.OllamaBaseURL)

	// Events
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)
	v.SetDefault("events.workers", d.Events.Workers)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)
	v.SetDefault("client.identity", d.Client.Identity)
}

// UpstreamEndpoints returns the configured endpoint override of every
// provider that has one, keyed by provider name.
func UpstreamEndpoints(v *viper.Viper) map[string]string {
	endpoints := make(map[string]string)
	for name, key := range map[string]string{
		"deepseek": "upstream.deepseek_base_url",
		"openai":   "upstream.openai_base_url",
		"ollama":   "upstream.ollama_base_url",
	} {
		if url := strings.TrimSpace(v.GetString(key)); url != "" {
			endpoints[name] = url
		}
	}
	return endpoints
}

// KafkaBrokers splits the comma-separated events.kafka_brokers value.
func KafkaBrokers(v *viper.Viper) []string {
	var brokers []string
	for _, b := range strings.Split(v.GetString("events.kafka_brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
