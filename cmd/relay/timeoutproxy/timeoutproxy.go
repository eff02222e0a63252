// Package timeoutproxycmder provides the timeout-proxy development command.
package timeoutproxycmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/timeoutproxy"
)

type timeoutProxyCommander struct {
	listen  string
	target  string
	timeout time.Duration
	debug   bool
}

const timeoutProxyLongDesc string = `Run a reverse proxy that destroys every connection after a fixed time.

Point "relay chat --target" at this proxy to reproduce intermediaries that
cut long-lived streams, and watch the client resume from the relay's cache.

Examples:
  relay timeout-proxy --target http://localhost:8080 --timeout 20s
  relay chat --target http://localhost:8090 --inactivity-timeout 25s`

func NewTimeoutProxyCmd() *cobra.Command {
	cmder := &timeoutProxyCommander{}

	cmd := &cobra.Command{
		Use:   "timeout-proxy",
		Short: "Run a connection-killing reverse proxy for resume testing",
		Long:  timeoutProxyLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.TimeoutProxyFlags, config.TimeoutProxyFlags.Keys())

			cmder.listen = v.GetString("timeout_proxy.listen")
			cmder.target = v.GetString("timeout_proxy.target")
			cmder.timeout, err = config.GetDuration(v, "timeout_proxy.timeout")
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run()
		},
	}

	fs := config.TimeoutProxyFlags
	config.AddStringFlag(cmd, fs, config.FlagProxyListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagProxyTarget, &cmder.target)
	config.AddDurationFlag(cmd, fs, config.FlagProxyTimeout, &cmder.timeout)

	return cmd
}

func (c *timeoutProxyCommander) run() error {
	log := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(cliui.IsTerminal(os.Stderr)),
		logger.WithWriter(os.Stderr),
		logger.WithComponent("timeout-proxy"),
	)

	p, err := timeoutproxy.New(timeoutproxy.Config{
		ListenAddr: c.listen,
		Target:     c.target,
		Timeout:    c.timeout,
	}, log)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String(), "killed", p.Killed())
		return p.Close()
	}
}
