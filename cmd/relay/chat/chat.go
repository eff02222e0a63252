package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/client"
	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/dotdir"
	"github.com/papercomputeco/relay/pkg/message"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	clientCommander

	sessionID string
	resume    bool
	markdown  bool
	in        io.Reader
}

const chatLongDesc string = `Start an interactive chat session through a running relay.

Replies stream as they are generated. When the connection drops, or no new
content arrives within the inactivity timeout, the chat reconnects and
replays the reply from the relay's stream cache without repeating text.

The session id is remembered in the .relay/ directory; use --continue to keep
talking in the last session, or "relay resume" to reattach to a reply that
was interrupted.

Examples:
  relay chat
  relay chat --target http://localhost:8090 --inactivity-timeout 20s
  relay chat --continue --markdown`

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:     "chat",
		Short:   "Interactive chat through the relay",
		Long:    chatLongDesc,
		Args:    cobra.NoArgs,
		PreRunE: cmder.prepare,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.in = cmd.InOrStdin()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return cmder.run(ctx)
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Session id to use (default: a new one)")
	cmd.Flags().BoolVarP(&cmder.resume, "continue", "c", false, "Continue the last session")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each finished reply as markdown instead of streaming it")

	return cmd
}

func (c *chatCommander) resolveSession() (string, error) {
	if c.sessionID != "" {
		return c.sessionID, nil
	}
	if c.resume {
		state, err := dotdir.NewManager().LoadSession(c.configDir)
		if err != nil {
			return "", err
		}
		if state != nil {
			return state.SessionID, nil
		}
	}
	return uuid.NewString(), nil
}

func (c *chatCommander) run(ctx context.Context) error {
	sessionID, err := c.resolveSession()
	if err != nil {
		return err
	}

	ts := cliui.NewTextStream(c.out)
	render := func(m message.Message) {
		if !c.markdown {
			ts.Update(m.Text())
		}
	}
	sess := c.newSession(sessionID, render)

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Session:"), cliui.NameStyle.Render(sessionID))
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Relay:"), cliui.NameStyle.Render(c.target))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		ts.Reset()
		res, err := c.send(ctx, sess, input)
		if res != nil {
			c.remember(sessionID, res.StreamID)
		}
		c.report(res, err)
		fmt.Fprintln(c.out)

		if ctx.Err() != nil {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func (c *chatCommander) send(ctx context.Context, sess *client.Session, input string) (*client.Result, error) {
	if !c.markdown {
		fmt.Fprint(c.out, assistantPrompt)
		return sess.Send(ctx, input)
	}

	var res *client.Result
	err := cliui.Step(c.out, "thinking", func() error {
		var err error
		res, err = sess.Send(ctx, input)
		return err
	})
	if res != nil && res.Message.Text() != "" {
		width := 80
		if f, ok := c.out.(*os.File); ok {
			width = cliui.Width(f, width)
		}
		rendered, _ := cliui.RenderMarkdownWidth(res.Message.Text(), width)
		fmt.Fprint(c.out, rendered)
	}
	return res, err
}
