package config

// Storage driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	defaultDriver          = DriverSQLite
	defaultAPIListen       = ":8080"
	defaultIdentityHeader  = "X-Chatrelay-User"
	defaultMCPListen       = ":8081"
	defaultProvider        = "deepseek"
	defaultUpstreamTimeout = "5m"
	defaultKafkaTopic      = "chatrelay.turns"
	defaultEventWorkers    = 2

	defaultClientAPITarget = "http://localhost:8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultDriver,
		},
		API: APIConfig{
			Listen:         defaultAPIListen,
			IdentityHeader: defaultIdentityHeader,
		},
		MCP: MCPConfig{
			Listen: defaultMCPListen,
		},
		Relay: RelayConfig{
			DefaultProvider: defaultProvider,
			UpstreamTimeout: defaultUpstreamTimeout,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
			Workers:    defaultEventWorkers,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
