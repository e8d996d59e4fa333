// Package chatcmder provides the chat command for interactive chat with a
// running chatrelay server.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/remote"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/client"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	flags remote.Flags

	provider    string
	model       string
	title       string
	attachments []string
	newChat     bool
	useShared   bool
	noStream    bool
	render      bool

	configDir string
	target    string
	caller    string

	client *client.Client
	ddm    *dotdir.Manager
	state  *dotdir.ChatState

	in  *bufio.Scanner
	out io.Writer
}

const chatLongDesc string = `Start an interactive chat session with a chatrelay server.

Every message is sent to the server, which relays it to the provider,
streams the reply back and stores both turns in the conversation.

The active conversation is remembered in chat.json in the .chatrelay/
directory and resumed by the next "chatrelay chat". Use --new, or type
/new during a session, to start another conversation.

Commands inside a session:
  /new     Start a new conversation
  /exit    Quit (Ctrl+D works too)

Examples:
  chatrelay chat
  chatrelay chat --provider openai --model gpt-4o
  chatrelay chat --new --title "Trip planning" --shared
  chatrelay chat --render`

const chatShortDesc string = "Interactive chat through a chatrelay server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := remote.Viper(cmd)
			if err != nil {
				return err
			}
			return cmder.connect(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.in = bufio.NewScanner(cmd.InOrStdin())
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.provider, "provider", "p", "", "Provider for this session (default: the server's default provider)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name (default: the provider's or credential's model)")
	cmd.Flags().StringVar(&cmder.title, "title", "", "Title for a new conversation")
	cmd.Flags().StringSliceVar(&cmder.attachments, "attach", nil, "Attachment reference sent with the first message (repeatable)")
	cmd.Flags().BoolVar(&cmder.newChat, "new", false, "Start a new conversation instead of resuming")
	cmd.Flags().BoolVar(&cmder.useShared, "shared", false, "Use a shared credential instead of your own")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the whole reply instead of streaming it")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render replies as markdown once they are complete")

	return cmd
}

func (c *chatCommander) connect(v *viper.Viper) error {
	cl, err := remote.NewClient(v)
	if err != nil {
		return err
	}

	c.client = cl
	c.target = v.GetString("client.api_target")
	c.caller = remote.Identity(v)
	c.ddm = dotdir.NewManager()
	return nil
}

func (c *chatCommander) run(ctx context.Context) error {
	if err := c.open(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new for a new conversation, /exit or Ctrl+D to quit."))

	for {
		fmt.Fprint(c.out, userPrompt)
		if !c.in.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(c.in.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/new":
			if err := c.startConversation(ctx); err != nil {
				fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
			}
			continue
		}

		if err := c.send(ctx, input); err != nil {
			fmt.Fprintf(c.out, "\n  %s %v\n\n", cliui.FailMark, err)
			continue
		}
		fmt.Fprint(c.out, "\n\n")
	}

	if err := c.in.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// open resumes the saved conversation or starts a new one.
func (c *chatCommander) open(ctx context.Context) error {
	fmt.Fprintln(c.out)

	if !c.newChat {
		state, err := c.ddm.LoadChatState(c.configDir)
		if err != nil {
			return fmt.Errorf("loading chat state: %w", err)
		}

		if state != nil && state.APITarget == c.target && state.Caller == c.caller {
			turns, err := c.client.Messages(ctx, state.ConversationID)
			if err == nil {
				c.state = state
				fmt.Fprintf(c.out, "  %s Resuming %s %s\n\n",
					cliui.SuccessMark,
					cliui.NameStyle.Render(state.Title),
					cliui.DimStyle.Render(fmt.Sprintf("(#%d, %d messages)", state.ConversationID, len(turns))),
				)
				return nil
			}
			fmt.Fprintf(c.out, "  %s Could not resume #%d: %v\n",
				cliui.WarnStyle.Render("!"),
				state.ConversationID,
				err,
			)
		}
	}

	return c.startConversation(ctx)
}

func (c *chatCommander) startConversation(ctx context.Context) error {
	conv, err := c.client.CreateConversation(ctx, c.title)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}

	c.state = &dotdir.ChatState{
		ConversationID: conv.ID,
		Title:          conv.Title,
		APITarget:      c.target,
		Caller:         c.caller,
	}
	if err := c.ddm.SaveChatState(c.state, c.configDir); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s New conversation %s %s\n\n",
		cliui.DimStyle.Render("●"),
		cliui.NameStyle.Render(conv.Title),
		cliui.DimStyle.Render(fmt.Sprintf("(#%d)", conv.ID)),
	)
	return nil
}

func (c *chatCommander) send(ctx context.Context, text string) error {
	req := api.SendRequest{
		Text:        text,
		Attachments: c.attachments,
		Params: llm.Params{
			Provider:  c.provider,
			Model:     c.model,
			UseShared: c.useShared,
			Stream:    !c.noStream,
		},
	}
	// Attachments go with the first message only.
	c.attachments = nil

	fmt.Fprint(c.out, assistantPrompt)

	onDelta := func(delta string) { fmt.Fprint(c.out, delta) }
	if c.render {
		onDelta = nil
	}

	reply, err := c.client.Send(ctx, c.state.ConversationID, req, onDelta)
	if err != nil {
		return err
	}

	if c.render {
		rendered, err := cliui.RenderMarkdown(reply)
		if err != nil {
			fmt.Fprint(c.out, reply)
			return nil
		}
		fmt.Fprint(c.out, "\n"+strings.TrimRight(rendered, "\n"))
	}
	return nil
}
