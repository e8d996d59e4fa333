package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .chatrelay/ directory. Keys use dotted notation matching
the TOML section structure.

Values are validated before they are written: storage.driver must be one
of sqlite, postgres or memory, relay.enable_vision a boolean,
relay.upstream_timeout a duration and events.workers a whole number.
Run "chatrelay config list" to see every key.

Examples:
  chatrelay config set storage.driver postgres
  chatrelay config set storage.postgres_dsn postgres://localhost/chatrelay
  chatrelay config set relay.upstream_timeout 90s`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := checkKey(key); err != nil {
				return err
			}

			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Set %s = %s\n\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(key),
				cliui.ValueStyle.Render(displayValue(key, value)),
			)
			return nil
		},
	}
}
