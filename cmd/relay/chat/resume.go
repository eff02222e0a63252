package chatcmder

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/client"
	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/dotdir"
	"github.com/papercomputeco/relay/pkg/message"
)

const resumeLongDesc string = `Reattach to the reply being generated for a session.

The relay replays the reply from its stream cache and keeps following it
until it finishes. Without an argument the last chat session is used.
When the relay has nothing buffered for the session, there is nothing to
resume and the command exits.

Examples:
  relay resume
  relay resume 5f0c8f0e-7a5e-4c55-9a37-1c3d7b1f3a61`

func NewResumeCmd() *cobra.Command {
	cmder := &clientCommander{}

	cmd := &cobra.Command{
		Use:     "resume [session-id]",
		Short:   "Replay and follow a session's active reply",
		Long:    resumeLongDesc,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: cmder.prepare,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			} else {
				state, err := dotdir.NewManager().LoadSession(cmder.configDir)
				if err != nil {
					return err
				}
				if state == nil {
					return errors.New("no previous chat session; pass a session id")
				}
				sessionID = state.SessionID
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ts := cliui.NewTextStream(cmder.out)
			sess := cmder.newSession(sessionID, func(m message.Message) { ts.Update(m.Text()) })

			res, err := sess.Resume(ctx)
			if errors.Is(err, client.ErrNothingToResume) {
				fmt.Fprintf(cmder.out, "  %s Nothing to resume for %s\n",
					cliui.DimStyle.Render("●"), cliui.NameStyle.Render(sessionID))
				return nil
			}
			if res != nil {
				cmder.remember(sessionID, res.StreamID)
			}
			cmder.report(res, err)
			return err
		},
	}

	cmder.addFlags(cmd)

	return cmd
}
