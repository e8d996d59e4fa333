// Package remote wires the flags and client shared by commands that talk to
// a running chatrelay server.
package remote

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/client"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

var clientFlags = []string{
	config.FlagAPITarget,
	config.FlagIdentity,
	config.FlagIdentityHeader,
}

// Flags holds the client flag targets of one command.
type Flags struct {
	apiTarget      string
	identity       string
	identityHeader string
}

// Register adds --api-target, --identity and --identity-header to cmd.
func (f *Flags) Register(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &f.apiTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagIdentity, &f.identity)
	config.AddStringFlag(cmd, config.Flags, config.FlagIdentityHeader, &f.identityHeader)
}

// Viper loads configuration for cmd with its client flags bound.
func Viper(cmd *cobra.Command) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, clientFlags)
	return v, nil
}

// Identity is the configured caller identity, falling back to $USER.
func Identity(v *viper.Viper) string {
	if identity := v.GetString("client.identity"); identity != "" {
		return identity
	}
	return os.Getenv("USER")
}

// NewClient builds an API client from v.
func NewClient(v *viper.Viper) (*client.Client, error) {
	return client.New(client.Config{
		Target:         v.GetString("client.api_target"),
		Identity:       Identity(v),
		IdentityHeader: v.GetString("api.identity_header"),
	})
}

// Client is Viper followed by NewClient.
func Client(cmd *cobra.Command) (*client.Client, error) {
	v, err := Viper(cmd)
	if err != nil {
		return nil, err
	}
	return NewClient(v)
}
