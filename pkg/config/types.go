package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent relay configuration stored as config.toml
// in the .relay/ directory. The TOML layout uses sections for logical grouping.
// Durations are Go duration strings ("5m", "250ms").
type Config struct {
	Version      int                `toml:"version"`
	Server       ServerConfig       `toml:"server"`
	Cache        CacheConfig        `toml:"cache"`
	Client       ClientConfig       `toml:"client"`
	Storage      StorageConfig      `toml:"storage"`
	EventStream  EventStreamConfig  `toml:"eventstream"`
	TimeoutProxy TimeoutProxyConfig `toml:"timeout_proxy"`
}

// ServerConfig holds settings for "relay serve".
type ServerConfig struct {
	Listen          string `toml:"listen,omitempty"`
	Upstream        string `toml:"upstream,omitempty"`
	Provider        string `toml:"provider,omitempty"`
	Model           string `toml:"model,omitempty"`
	UpstreamTimeout string `toml:"upstream_timeout,omitempty"`
}

// CacheConfig holds stream cache settings.
type CacheConfig struct {
	TTL           string `toml:"ttl,omitempty"`
	SweepInterval string `toml:"sweep_interval,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// relay (relay chat, relay resume). Target is a full URL.
type ClientConfig struct {
	Target            string `toml:"target,omitempty"`
	User              string `toml:"user,omitempty"`
	InactivityTimeout string `toml:"inactivity_timeout,omitempty"`
	RetryInterval     string `toml:"retry_interval,omitempty"`
	MaxAttempts       uint   `toml:"max_attempts,omitempty"`
	BackoffBase       string `toml:"backoff_base,omitempty"`
	BackoffMax        string `toml:"backoff_max,omitempty"`
	Jitter            string `toml:"jitter,omitempty"`
}

// StorageConfig selects the transcript store. Postgres wins when both are set;
// neither means in-memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig enables the Kafka lifecycle publisher when Brokers is set.
// Brokers is a comma separated list.
type EventStreamConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers, dropping blanks.
func (e EventStreamConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// TimeoutProxyConfig holds settings for "relay timeout-proxy".
type TimeoutProxyConfig struct {
	Listen  string `toml:"listen,omitempty"`
	Target  string `toml:"target,omitempty"`
	Timeout string `toml:"timeout,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// durationKey rejects values time.ParseDuration can't read so a bad
// config.toml is caught at "relay config set" rather than at startup.
func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen":           stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"server.upstream":         stringKey(func(c *Config) *string { return &c.Server.Upstream }),
	"server.provider":         stringKey(func(c *Config) *string { return &c.Server.Provider }),
	"server.model":            stringKey(func(c *Config) *string { return &c.Server.Model }),
	"server.upstream_timeout": durationKey("server.upstream_timeout", func(c *Config) *string { return &c.Server.UpstreamTimeout }),

	"cache.ttl":            durationKey("cache.ttl", func(c *Config) *string { return &c.Cache.TTL }),
	"cache.sweep_interval": durationKey("cache.sweep_interval", func(c *Config) *string { return &c.Cache.SweepInterval }),

	"client.target":             stringKey(func(c *Config) *string { return &c.Client.Target }),
	"client.user":               stringKey(func(c *Config) *string { return &c.Client.User }),
	"client.inactivity_timeout": durationKey("client.inactivity_timeout", func(c *Config) *string { return &c.Client.InactivityTimeout }),
	"client.retry_interval":     durationKey("client.retry_interval", func(c *Config) *string { return &c.Client.RetryInterval }),
	"client.max_attempts": {
		get: func(c *Config) string {
			if c.Client.MaxAttempts == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Client.MaxAttempts), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for client.max_attempts: %w", err)
			}
			c.Client.MaxAttempts = uint(n)
			return nil
		},
	},
	"client.backoff_base": durationKey("client.backoff_base", func(c *Config) *string { return &c.Client.BackoffBase }),
	"client.backoff_max":  durationKey("client.backoff_max", func(c *Config) *string { return &c.Client.BackoffMax }),
	"client.jitter":       durationKey("client.jitter", func(c *Config) *string { return &c.Client.Jitter }),

	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"eventstream.brokers": stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":   stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"timeout_proxy.listen":  stringKey(func(c *Config) *string { return &c.TimeoutProxy.Listen }),
	"timeout_proxy.target":  stringKey(func(c *Config) *string { return &c.TimeoutProxy.Target }),
	"timeout_proxy.timeout": durationKey("timeout_proxy.timeout", func(c *Config) *string { return &c.TimeoutProxy.Timeout }),
}
