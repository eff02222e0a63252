// Package chatcmder provides the chat and resume commands, which talk to a
// running relay through pkg/client.
package chatcmder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/relay/pkg/client"
	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/dotdir"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/reconnect"
)

// clientCommander holds what chat and resume share.
type clientCommander struct {
	configDir string
	debug     bool

	target            string
	user              string
	email             string
	model             string
	inactivityTimeout time.Duration
	maxAttempts       uint
	reconnect         reconnect.Config

	out    io.Writer
	logger *slog.Logger
}

func (c *clientCommander) addFlags(cmd *cobra.Command) {
	fs := config.ClientFlags
	config.AddStringFlag(cmd, fs, config.FlagTarget, &c.target)
	config.AddStringFlag(cmd, fs, config.FlagUser, &c.user)
	config.AddStringFlag(cmd, fs, config.FlagModel, &c.model)
	config.AddDurationFlag(cmd, fs, config.FlagInactivityTimeout, &c.inactivityTimeout)
	config.AddUintFlag(cmd, fs, config.FlagMaxAttempts, &c.maxAttempts)
	cmd.Flags().StringVar(&c.email, "email", "", "Email sent in the identity header")
}

// prepare resolves flag > env > config.toml > default for every client
// setting. It is used as PreRunE.
func (c *clientCommander) prepare(cmd *cobra.Command, _ []string) error {
	c.configDir, _ = cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")
	c.out = cmd.OutOrStdout()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.ClientFlags, config.ClientFlags.Keys())

	c.target = v.GetString("client.target")
	c.user = v.GetString("client.user")
	c.model = v.GetString("server.model")
	c.maxAttempts = v.GetUint("client.max_attempts")
	if c.user == "" {
		c.user = os.Getenv("USER")
	}
	if c.user == "" {
		return errors.New("a user is required: pass --user or set client.user")
	}

	rc, err := reconnectConfig(v)
	if err != nil {
		return err
	}
	c.reconnect = rc
	c.inactivityTimeout = rc.InactivityTimeout

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(cliui.IsTerminal(os.Stderr)),
		logger.WithWriter(os.Stderr),
		logger.WithComponent("chat"),
	)
	return nil
}

func reconnectConfig(v *viper.Viper) (reconnect.Config, error) {
	rc := reconnect.Config{MaxAttempts: int(v.GetUint("client.max_attempts"))}
	for key, dst := range map[string]*time.Duration{
		"client.inactivity_timeout": &rc.InactivityTimeout,
		"client.retry_interval":     &rc.RetryInterval,
		"client.backoff_base":       &rc.BackoffBase,
		"client.backoff_max":        &rc.BackoffMax,
		"client.jitter":             &rc.Jitter,
	} {
		d, err := config.GetDuration(v, key)
		if err != nil {
			return reconnect.Config{}, err
		}
		*dst = d
	}
	return rc, nil
}

func (c *clientCommander) newSession(id string, render func(message.Message)) *client.Session {
	return client.NewSession(id, client.Config{
		BaseURL:   c.target,
		User:      c.user,
		Email:     c.email,
		Model:     c.model,
		Reconnect: c.reconnect,
	}, client.WithLogger(c.logger), client.WithRenderer(render))
}

func (c *clientCommander) remember(sessionID, streamID string) {
	err := dotdir.NewManager().SaveSession(&dotdir.SessionState{
		SessionID: sessionID,
		StreamID:  streamID,
		Target:    c.target,
		UpdatedAt: time.Now(),
	}, c.configDir)
	if err != nil {
		c.logger.Warn("could not save session state", "error", err)
	}
}

// report prints the footer for a finished (or abandoned) message.
func (c *clientCommander) report(res *client.Result, err error) {
	w := c.out
	switch {
	case errors.Is(err, client.ErrGaveUp):
		fmt.Fprintf(w, "\n  %s %s\n", cliui.FailMark, reconnect.TerminalMessage)
		return
	case err != nil:
		fmt.Fprintf(w, "\n  %s %v\n", cliui.FailMark, err)
		return
	case res == nil:
		return
	}

	for _, e := range res.Errors {
		fmt.Fprintf(w, "\n  %s %s", cliui.FailMark, e)
	}

	details := fmt.Sprintf("%s · first byte %s", res.FinishReason, cliui.FormatDuration(res.Timing.TTFB))
	if res.Resumes > 0 {
		details += fmt.Sprintf(" · %s resumed %d×", cliui.WarnMark, res.Resumes)
	}
	if !res.Complete {
		details = "incomplete · " + details
	}
	fmt.Fprintf(w, "\n  %s\n", cliui.DimStyle.Render(details))
}
