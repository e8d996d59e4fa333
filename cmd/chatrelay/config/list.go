package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key and its current value, grouped by
config.toml section. Passwords in connection strings are masked.

Examples:
  chatrelay config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			keys := config.ValidConfigKeys()

			// Find the longest key name for alignment.
			maxLen := 0
			for _, k := range keys {
				maxLen = max(maxLen, len(k))
			}

			out := cmd.OutOrStdout()
			section := ""
			for _, key := range keys {
				if s, _, _ := strings.Cut(key, "."); s != section {
					section = s
					fmt.Fprintf(out, "  %s\n", cliui.HeaderStyle.Render("["+section+"]"))
				}

				value, err := cfger.GetConfigValue(key)
				if err != nil {
					return err
				}

				if value == "" {
					fmt.Fprintf(out, "  %-*s = %s\n", maxLen, key, cliui.DimStyle.Render("<not set>"))
				} else {
					fmt.Fprintf(out, "  %-*s = %q\n", maxLen, key, displayValue(key, value))
				}
			}
			fmt.Fprintln(out)

			return nil
		},
	}
}
