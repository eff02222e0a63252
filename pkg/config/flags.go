package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so --target on "relay chat"
// and "relay resume" cannot drift apart.
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to Flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen          = "listen"
	FlagUpstream        = "upstream"
	FlagProvider        = "provider"
	FlagModel           = "model"
	FlagUpstreamTimeout = "upstream-timeout"
	FlagCacheTTL        = "cache-ttl"
	FlagSweepInterval   = "sweep-interval"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"

	FlagTarget            = "target"
	FlagUser              = "user"
	FlagInactivityTimeout = "inactivity-timeout"
	FlagMaxAttempts       = "max-attempts"

	// The timeout proxy reuses "listen", "target" and "timeout" as flag
	// names but binds them to its own section.
	FlagProxyListen  = "proxy-listen"
	FlagProxyTarget  = "proxy-target"
	FlagProxyTimeout = "proxy-timeout"
)

// ServeFlags are the flags of "relay serve".
var ServeFlags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the relay to listen on"},
	FlagUpstream:        {Name: "upstream", Shorthand: "u", ViperKey: "server.upstream", Description: "Upstream LLM provider URL"},
	FlagProvider:        {Name: "provider", Shorthand: "p", ViperKey: "server.provider", Description: "Upstream provider type (openai, chatagent, responses, anthropic, ollama, auto)"},
	FlagModel:           {Name: "model", Shorthand: "m", ViperKey: "server.model", Description: "Model requested from the upstream"},
	FlagUpstreamTimeout: {Name: "upstream-timeout", ViperKey: "server.upstream_timeout", Description: "Upper bound on a single upstream generation"},
	FlagCacheTTL:        {Name: "cache-ttl", ViperKey: "cache.ttl", Description: "How long stream buffers are kept after their last activity"},
	FlagSweepInterval:   {Name: "sweep-interval", ViperKey: "cache.sweep_interval", Description: "How often expired stream buffers are swept"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: in-memory)"},
	FlagPostgres:        {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers for stream lifecycle events"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for stream lifecycle events"},
}

// ClientFlags are shared by "relay chat" and "relay resume".
var ClientFlags = FlagSet{
	FlagTarget:            {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "Relay server URL"},
	FlagUser:              {Name: "user", ViperKey: "client.user", Description: "User name sent in the identity header"},
	FlagModel:             {Name: "model", Shorthand: "m", ViperKey: "server.model", Description: "Model requested for the chat"},
	FlagInactivityTimeout: {Name: "inactivity-timeout", ViperKey: "client.inactivity_timeout", Description: "Resume when no content arrives for this long"},
	FlagMaxAttempts:       {Name: "max-attempts", ViperKey: "client.max_attempts", Description: "Resume attempts without progress before giving up (0 = unlimited)"},
}

// TimeoutProxyFlags are the flags of "relay timeout-proxy".
var TimeoutProxyFlags = FlagSet{
	FlagProxyListen:  {Name: "listen", Shorthand: "l", ViperKey: "timeout_proxy.listen", Description: "Address for the timeout proxy to listen on"},
	FlagProxyTarget:  {Name: "target", Shorthand: "t", ViperKey: "timeout_proxy.target", Description: "Relay URL to forward to"},
	FlagProxyTimeout: {Name: "timeout", ViperKey: "timeout_proxy.timeout", Description: "Connections are destroyed after this long"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *time.Duration) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// Keys returns every registry key in fs, for binding a whole set at once.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	return keys
}

func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

func defaultDuration(viperKey string) time.Duration {
	v := viper.New()
	setViperDefaults(v)
	d, _ := GetDuration(v, viperKey)
	return d
}
