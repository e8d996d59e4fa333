// Package chatrelaycmder is the root chatrelay command.
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	keyscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/keys"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/version"
)

const chatrelayLongDesc string = `chatrelay relays conversations between callers and LLM providers.

It stores conversations per caller, picks an upstream credential for each
send, and streams the reply back while persisting it.

Run the server:
  chatrelay serve      Run the API server (and the MCP server when configured)

Talk to a running server:
  chatrelay chat       Interactive chat in the terminal
  chatrelay keys       Manage provider credentials`

const chatrelayShortDesc string = "chatrelay - conversation streaming relay"

func NewChatrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         chatrelayShortDesc,
		Long:          chatrelayLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chatrelay/ configuration directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(keyscmder.NewKeysCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
