// Package relaycmder is the root of the relay CLI.
package relaycmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/relay/cmd/relay/auth"
	chatcmder "github.com/papercomputeco/relay/cmd/relay/chat"
	configcmder "github.com/papercomputeco/relay/cmd/relay/config"
	servecmder "github.com/papercomputeco/relay/cmd/relay/serve"
	timeoutproxycmder "github.com/papercomputeco/relay/cmd/relay/timeoutproxy"
	versioncmder "github.com/papercomputeco/relay/cmd/version"
)

const relayLongDesc string = `Relay is a resumable token-stream relay for LLM chat.

Run the server and talk to it:
  relay serve            Run the relay server
  relay chat             Chat through a running relay
  relay resume           Reattach to an interrupted reply
  relay timeout-proxy    Cut connections on a timer to exercise resume`

const relayShortDesc string = "Relay - resumable LLM token streams"

func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        relayShortDesc,
		Long:         relayLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .relay/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(chatcmder.NewResumeCmd())
	cmd.AddCommand(timeoutproxycmder.NewTimeoutProxyCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
