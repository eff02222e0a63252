// Package servecmder provides the serve command running the relay server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/credentials"
	"github.com/papercomputeco/relay/pkg/dotdir"
	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/eventstream/kafka"
	"github.com/papercomputeco/relay/pkg/eventstream/nop"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/storage/postgres"
	"github.com/papercomputeco/relay/pkg/storage/sqlite"
	"github.com/papercomputeco/relay/pkg/streamcache"
	"github.com/papercomputeco/relay/relay"
)

type serveCommander struct {
	configDir string
	debug     bool
	viper     *viper.Viper

	listen          string
	upstream        string
	provider        string
	model           string
	upstreamToken   string
	upstreamTimeout time.Duration
	cacheTTL        time.Duration
	sweepInterval   time.Duration
	sqlitePath      string
	postgresDSN     string
	kafkaBrokers    string
	kafkaTopic      string

	includeRaw  bool
	watchConfig bool
	logFile     bool
	jsonLogs    bool

	logger *slog.Logger
}

const serveLongDesc string = `Run the relay server.

The relay forwards POST /chat to the upstream LLM endpoint, streams the
normalized response back as Server-Sent Events, and buffers every event so a
client that loses its connection can replay it from GET /stream/{sessionId}.

Transcripts are stored in SQLite (--sqlite), PostgreSQL (--postgres) or
memory. With --kafka-brokers, stream lifecycle and persisted turns are
published to Kafka.

Examples:
  relay serve --upstream https://host/serving-endpoints/agent/invocations --provider chatagent
  relay serve --sqlite ./relay.db --cache-ttl 10m --watch-config`

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, config.ServeFlags.Keys())
			cmder.viper = v
			return cmder.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	fs := config.ServeFlags
	config.AddStringFlag(cmd, fs, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, fs, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, fs, config.FlagModel, &cmder.model)
	config.AddDurationFlag(cmd, fs, config.FlagUpstreamTimeout, &cmder.upstreamTimeout)
	config.AddDurationFlag(cmd, fs, config.FlagCacheTTL, &cmder.cacheTTL)
	config.AddDurationFlag(cmd, fs, config.FlagSweepInterval, &cmder.sweepInterval)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, fs, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, fs, config.FlagKafkaTopic, &cmder.kafkaTopic)

	cmd.Flags().StringVar(&cmder.upstreamToken, "upstream-token", "", "Bearer token for the upstream (default: from relay auth or the provider env var)")
	cmd.Flags().BoolVar(&cmder.includeRaw, "include-raw", false, "Forward every upstream chunk to clients as a raw event")
	cmd.Flags().BoolVar(&cmder.watchConfig, "watch-config", false, "Reload cache.ttl when config.toml changes")
	cmd.Flags().BoolVar(&cmder.logFile, "log-file", false, "Also write JSON logs to relay.log in the .relay/ directory")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json", false, "Write JSON logs to stdout")

	return cmd
}

// load copies the effective flag > env > file > default values out of viper.
func (c *serveCommander) load() error {
	v := c.viper
	c.listen = v.GetString("server.listen")
	c.upstream = v.GetString("server.upstream")
	c.provider = v.GetString("server.provider")
	c.model = v.GetString("server.model")
	c.sqlitePath = v.GetString("storage.sqlite_path")
	c.postgresDSN = v.GetString("storage.postgres_dsn")
	c.kafkaBrokers = v.GetString("eventstream.brokers")
	c.kafkaTopic = v.GetString("eventstream.topic")

	for key, dst := range map[string]*time.Duration{
		"server.upstream_timeout": &c.upstreamTimeout,
		"cache.ttl":               &c.cacheTTL,
		"cache.sweep_interval":    &c.sweepInterval,
	} {
		d, err := config.GetDuration(v, key)
		if err != nil {
			return err
		}
		*dst = d
	}
	return nil
}

func (c *serveCommander) run(ctx context.Context) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}

	driver, err := c.newStorageDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	cache := streamcache.New(
		streamcache.WithTTL(c.cacheTTL),
		streamcache.WithSweepInterval(c.sweepInterval),
		streamcache.WithLogger(c.logger),
	)
	defer cache.Close()

	token, err := c.resolveToken()
	if err != nil {
		return err
	}

	r, err := relay.New(relay.Config{
		ListenAddr:      c.listen,
		UpstreamURL:     c.upstream,
		UpstreamToken:   token,
		ProviderType:    c.provider,
		Model:           c.model,
		UpstreamTimeout: c.upstreamTimeout,
		IncludeRaw:      c.includeRaw,
	}, cache, driver, relay.WithPublisher(publisher), relay.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	if c.watchConfig {
		watching := config.Watch(c.viper, c.logger, func(v *viper.Viper) {
			ttl, err := config.GetDuration(v, "cache.ttl")
			if err != nil {
				c.logger.Warn("ignoring config change", "error", err)
				return
			}
			if ttl != cache.TTL() {
				cache.SetTTL(ttl)
				c.logger.Info("cache ttl updated", "ttl", ttl)
			}
		})
		if !watching {
			c.logger.Warn("no config.toml found, --watch-config has nothing to watch")
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (c *serveCommander) setupLogger() (func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.jsonLogs && cliui.IsTerminal(os.Stderr)),
		logger.WithJSON(c.jsonLogs),
		logger.WithWriter(os.Stderr),
		logger.WithComponent("serve"),
	)
	c.logger = console

	if !c.logFile {
		return func() {}, nil
	}

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "relay.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening relay.log: %w", err)
	}

	c.logger = logger.Multi(console, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
		logger.WithComponent("serve"),
	))
	return func() { _ = f.Close() }, nil
}

func (c *serveCommander) newStorageDriver(ctx context.Context) (storage.Driver, error) {
	switch {
	case c.postgresDSN != "":
		driver, err := postgres.NewDriver(ctx, c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return driver, nil

	case c.sqlitePath != "":
		driver, err := sqlite.NewDriver(ctx, c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", c.sqlitePath)
		return driver, nil

	default:
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := config.EventStreamConfig{Brokers: c.kafkaBrokers}.BrokerList()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.kafkaTopic,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	c.logger.Info("publishing stream events", "brokers", brokers, "topic", c.kafkaTopic)
	return p, nil
}

func (c *serveCommander) resolveToken() (string, error) {
	if c.upstreamToken != "" {
		return c.upstreamToken, nil
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	token, err := mgr.Resolve(c.provider)
	if err != nil {
		return "", fmt.Errorf("resolving upstream token: %w", err)
	}
	return token, nil
}
