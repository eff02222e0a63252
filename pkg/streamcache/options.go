package streamcache

import (
	"log/slog"
	"time"
)

const (
	// DefaultTTL is how long an entry may sit without writes or reads.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often idle entries are evicted.
	DefaultSweepInterval = time.Minute
)

type config struct {
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	observers     []Observer
}

// Option configures a Cache created with New.
type Option func(*config)

// WithTTL sets the idle time after which an entry is evicted.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often the background sweep runs. A negative
// interval disables the background sweep; Sweep can still be called directly.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) {
		if d != 0 {
			c.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver registers fn to be told about entry lifecycle changes. It is
// called outside the cache's locks and must not block for long.
func WithObserver(fn Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, fn)
	}
}
