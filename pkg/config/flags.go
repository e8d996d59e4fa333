package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --api-target
// on both "chatrelay chat" and "chatrelay keys").
type Flag struct {
	// Name is the long flag name (e.g. "api-listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "a"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen       = "api-listen"
	FlagIdentityHeader  = "identity-header"
	FlagMCPListen       = "mcp-listen"
	FlagStorageDriver   = "storage-driver"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagProvider        = "provider"
	FlagVision          = "vision"
	FlagUpstreamTimeout = "upstream-timeout"
	FlagUploadsDir      = "uploads-dir"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
	FlagEventWorkers    = "event-workers"
	FlagAPITarget       = "api-target"
	FlagIdentity        = "identity"
)

// Flags is the registry of every chatrelay CLI flag.
var Flags = FlagSet{
	FlagAPIListen:       {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagIdentityHeader:  {Name: "identity-header", ViperKey: "api.identity_header", Description: "Request header carrying the caller identity"},
	FlagMCPListen:       {Name: "mcp-listen", ViperKey: "mcp.listen", Description: "Address for the MCP server to listen on (empty disables it)"},
	FlagStorageDriver:   {Name: "storage-driver", ViperKey: "storage.driver", Description: "Storage driver (sqlite, postgres, memory)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database (default: .chatrelay/chatrelay.db)"},
	FlagPostgres:        {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagProvider:        {Name: "provider", Shorthand: "p", ViperKey: "relay.default_provider", Description: "Provider used when a request names none (deepseek, openai, ollama)"},
	FlagVision:          {Name: "vision", ViperKey: "relay.enable_vision", Description: "Send image attachments to vision-capable providers"},
	FlagUpstreamTimeout: {Name: "upstream-timeout", ViperKey: "relay.upstream_timeout", Description: "Timeout for a single upstream call"},
	FlagUploadsDir:      {Name: "uploads-dir", ViperKey: "relay.uploads_dir", Description: "Directory for uploaded attachments (default: .chatrelay/uploads)"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma-separated Kafka brokers for turn events"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for turn events"},
	FlagEventWorkers:    {Name: "event-workers", ViperKey: "events.workers", Description: "Number of turn event publishing workers"},
	FlagAPITarget:       {Name: "api-target", Shorthand: "t", ViperKey: "client.api_target", Description: "chatrelay API server URL"},
	FlagIdentity:        {Name: "identity", Shorthand: "i", ViperKey: "client.identity", Description: "Caller identity sent to the API server"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultViper().GetUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultViper returns a viper instance holding only the defaults from
// NewDefaultConfig.
func defaultViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
