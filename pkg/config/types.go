package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Storage  StorageConfig  `toml:"storage"`
	API      APIConfig      `toml:"api"`
	MCP      MCPConfig      `toml:"mcp"`
	Relay    RelayConfig    `toml:"relay"`
	Upstream UpstreamConfig `toml:"upstream"`
	Events   EventsConfig   `toml:"events"`
	Client   ClientConfig   `toml:"client"`
}

// StorageConfig selects and configures the storage driver.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen         string `toml:"listen,omitempty"`
	IdentityHeader string `toml:"identity_header,omitempty"`
}

// MCPConfig holds MCP server settings. An empty Listen disables the server.
type MCPConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// RelayConfig holds relay engine settings.
type RelayConfig struct {
	DefaultProvider string `toml:"default_provider,omitempty"`
	EnableVision    bool   `toml:"enable_vision,omitempty"`

	// UpstreamTimeout is a Go duration string (e.g. "5m").
	UpstreamTimeout string `toml:"upstream_timeout,omitempty"`
	UploadsDir      string `toml:"uploads_dir,omitempty"`
}

// UpstreamConfig overrides provider endpoints.
type UpstreamConfig struct {
	DeepSeekBaseURL string `toml:"deepseek_base_url,omitempty"`
	OpenAIBaseURL   string `toml:"openai_base_url,omitempty"`
	OllamaBaseURL   string `toml:"ollama_base_url,omitempty"`
}

// EventsConfig configures turn event publishing. Events are published to
// Kafka when KafkaBrokers is set.
type EventsConfig struct {
	// KafkaBrokers is a comma-separated broker list.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
	Workers      uint   `toml:"workers,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// server (e.g. chatrelay chat, chatrelay keys). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
	Identity  string `toml:"identity,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case DriverSQLite, DriverPostgres, DriverMemory:
				c.Storage.Driver = v
				return nil
			default:
				return fmt.Errorf("invalid value for storage.driver: %q (expected %s, %s or %s)", v, DriverSQLite, DriverPostgres, DriverMemory)
			}
		},
	},
	"storage.sqlite_path":    stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":   stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"api.listen":             stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.identity_header":    stringKey(func(c *Config) *string { return &c.API.IdentityHeader }),
	"mcp.listen":             stringKey(func(c *Config) *string { return &c.MCP.Listen }),
	"relay.default_provider": stringKey(func(c *Config) *string { return &c.Relay.DefaultProvider }),
	"relay.enable_vision": {
		get: func(c *Config) string { return strconv.FormatBool(c.Relay.EnableVision) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for relay.enable_vision: %w", err)
			}
			c.Relay.EnableVision = b
			return nil
		},
	},
	"relay.upstream_timeout": {
		get: func(c *Config) string { return c.Relay.UpstreamTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for relay.upstream_timeout: %w", err)
			}
			c.Relay.UpstreamTimeout = v
			return nil
		},
	},
	"relay.uploads_dir":          stringKey(func(c *Config) *string { return &c.Relay.UploadsDir }),
	"upstream.deepseek_base_url": stringKey(func(c *Config) *string { return &c.Upstream.DeepSeekBaseURL }),
	"upstream.openai_base_url":   stringKey(func(c *Config) *string { return &c.Upstream.OpenAIBaseURL }),
	"upstream.ollama_base_url":   stringKey(func(c *Config) *string { return &c.Upstream.OllamaBaseURL }),
	"events.kafka_brokers":       stringKey(func(c *Config) *string { return &c.Events.KafkaBrokers }),
	"events.kafka_topic":         stringKey(func(c *Config) *string { return &c.Events.KafkaTopic }),
	"events.workers": {
		get: func(c *Config) string {
			if c.Events.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Events.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for events.workers: %w", err)
			}
			c.Events.Workers = uint(n)
			return nil
		},
	},
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"client.identity":   stringKey(func(c *Config) *string { return &c.Client.Identity }),
}
