package config

const (
	defaultListen          = ":8080"
	defaultUpstream        = "https://api.openai.com/v1/chat/completions"
	defaultProvider        = "auto"
	defaultUpstreamTimeout = "5m"

	defaultCacheTTL      = "5m"
	defaultSweepInterval = "1m"

	defaultClientTarget      = "http://localhost:8080"
	defaultInactivityTimeout = "65s"
	defaultRetryInterval     = "5s"
	defaultMaxAttempts       = 5
	defaultBackoffBase       = "1s"
	defaultBackoffMax        = "10s"
	defaultJitter            = "250ms"

	defaultTopic = "relay.streams"

	defaultTimeoutProxyListen  = ":8090"
	defaultTimeoutProxyTarget  = "http://localhost:8080"
	defaultTimeoutProxyTimeout = "60s"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:          defaultListen,
			Upstream:        defaultUpstream,
			Provider:        defaultProvider,
			UpstreamTimeout: defaultUpstreamTimeout,
		},
		Cache: CacheConfig{
			TTL:           defaultCacheTTL,
			SweepInterval: defaultSweepInterval,
		},
		Client: ClientConfig{
			Target:            defaultClientTarget,
			InactivityTimeout: defaultInactivityTimeout,
			RetryInterval:     defaultRetryInterval,
			MaxAttempts:       defaultMaxAttempts,
			BackoffBase:       defaultBackoffBase,
			BackoffMax:        defaultBackoffMax,
			Jitter:            defaultJitter,
		},
		EventStream: EventStreamConfig{
			Topic: defaultTopic,
		},
		TimeoutProxy: TimeoutProxyConfig{
			Listen:  defaultTimeoutProxyListen,
			Target:  defaultTimeoutProxyTarget,
			Timeout: defaultTimeoutProxyTimeout,
		},
	}
}
