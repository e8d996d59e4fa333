// Package keyscmder provides the keys command for managing the provider
// credentials stored on a chatrelay server.
package keyscmder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/remote"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
)

const keysLongDesc string = `Manage provider credentials on a chatrelay server.

Credentials are stored by the server and used to authenticate upstream
calls. A credential belongs to the caller that added it unless it is added
with --shared, which places it in the pool every caller can opt into.
Secrets are never printed or returned by the server.

Use subcommands to add, list, or delete credentials:
  chatrelay keys add <provider>    Add a credential (secret read from stdin)
  chatrelay keys list              List your credentials and the shared pool
  chatrelay keys delete <id>       Delete a credential you own`

const keysShortDesc string = "Manage provider credentials"

func NewKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: keysShortDesc,
		Long:  keysLongDesc,
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

const addLongDesc string = `Add a provider credential.

The secret is read from stdin. On a terminal it is prompted for with
hidden input; otherwise the first line of stdin is used.

Examples:
  chatrelay keys add deepseek --label personal
  chatrelay keys add openai --shared --model gpt-4o
  chatrelay keys add ollama --base-url http://gpu-box:11434/v1/chat/completions
  echo $OPENAI_API_KEY | chatrelay keys add openai`

func newAddCmd() *cobra.Command {
	var (
		flags   remote.Flags
		label   string
		shared  bool
		baseURL string
		model   string
	)

	cmd := &cobra.Command{
		Use:       "add <provider>",
		Short:     "Add a provider credential",
		Long:      addLongDesc,
		Args:      cobra.ExactArgs(1),
		ValidArgs: provider.SupportedProviders(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := provider.Normalize(args[0])
			if !provider.IsSupported(name) {
				return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
					name, strings.Join(provider.SupportedProviders(), ", "))
			}

			c, err := remote.Client(cmd)
			if err != nil {
				return err
			}

			secret, err := readSecret(cmd, name)
			if err != nil {
				return err
			}
			secret = strings.TrimSpace(secret)
			if secret == "" {
				return errors.New("secret cannot be empty")
			}

			req := api.CreateCredentialRequest{
				Provider: name,
				Label:    label,
				Secret:   secret,
				Shared:   shared,
			}
			if baseURL != "" || model != "" {
				req.Config, err = json.Marshal(credential.Config{BaseURL: baseURL, Model: model})
				if err != nil {
					return fmt.Errorf("encoding credential config: %w", err)
				}
			}

			cred, err := c.CreateCredential(cmd.Context(), req)
			if err != nil {
				return err
			}

			scope := "personal"
			if cred.Shared {
				scope = "shared"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Stored %s credential %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(cred.Provider),
				cliui.ValueStyle.Render("#"+strconv.FormatInt(cred.ID, 10)),
				cliui.DimStyle.Render("("+scope+")"),
			)
			return nil
		},
	}

	flags.Register(cmd)
	cmd.Flags().StringVar(&label, "label", "", "Label shown when listing credentials")
	cmd.Flags().BoolVar(&shared, "shared", false, "Add the credential to the shared pool")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Completion endpoint used with this credential")
	cmd.Flags().StringVar(&model, "model", "", "Model used with this credential when a request names none")

	return cmd
}

func newListCmd() *cobra.Command {
	var flags remote.Flags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := remote.Client(cmd)
			if err != nil {
				return err
			}

			creds, err := c.ListCredentials(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(creds) == 0 {
				fmt.Fprintf(out, "\n  %s No credentials.\n", cliui.DimStyle.Render("●"))
				fmt.Fprintf(out, "  Use 'chatrelay keys add <provider>' to add one.\n\n")
				return nil
			}

			fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Credentials"))
			for _, cred := range creds {
				scope := "personal"
				if cred.Shared {
					scope = "shared"
				}

				line := fmt.Sprintf("  %s  %-8s  %-8s",
					cliui.ValueStyle.Render(fmt.Sprintf("#%-4d", cred.ID)),
					cred.Provider,
					scope,
				)
				if cred.Label != "" {
					line += "  " + cliui.NameStyle.Render(cred.Label)
				}
				if cfg, err := credential.ParseConfig(cred.Config); err == nil {
					if cfg.Model != "" {
						line += "  " + cliui.DimStyle.Render("model="+cfg.Model)
					}
					if cfg.BaseURL != "" {
						line += "  " + cliui.DimStyle.Render(cfg.BaseURL)
					}
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			return nil
		},
	}

	flags.Register(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var flags remote.Flags

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a credential you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid credential id %q", args[0])
			}

			c, err := remote.Client(cmd)
			if err != nil {
				return err
			}

			if err := c.DeleteCredential(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted credential %s\n\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render("#"+strconv.FormatInt(id, 10)),
			)
			return nil
		},
	}

	flags.Register(cmd)
	return cmd
}

// readSecret reads a secret from the command's stdin. A terminal gets a
// hidden prompt; anything else has its first line read.
func readSecret(cmd *cobra.Command, providerName string) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.OutOrStdout(), "Enter %s secret: ", providerName)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout()) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(secret), nil
	}

	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
