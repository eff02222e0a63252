// Package reconnect decides when a streaming client should reattach to the
// relay's replay endpoint: after transport errors, with exponential backoff,
// and after silent stalls, through an inactivity watchdog.
package reconnect

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/papercomputeco/relay/pkg/logger"
)

// TerminalMessage is reported once retries are exhausted.
const TerminalMessage = "Connection lost. Please refresh to see the complete response."

// Status is the connection status the controller tracks.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusComplete
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Trigger says why a resume was requested.
type Trigger string

const (
	TriggerError      Trigger = "error"
	TriggerInactivity Trigger = "inactivity"
)

// Config holds the reconnect policy.
type Config struct {
	// BackoffBase is multiplied by 2^attempt for every retry after the first.
	BackoffBase time.Duration

	// BackoffMax caps the exponential part of the delay.
	BackoffMax time.Duration

	// Jitter is the upper bound of the random delay added to each wait.
	Jitter time.Duration

	// MaxAttempts bounds consecutive resume attempts without progress.
	// Zero means unlimited.
	MaxAttempts int

	// InactivityTimeout is how long the stream may go without new content
	// before the watchdog requests a resume. It should exceed the forced
	// close interval of any proxy in front of the relay.
	InactivityTimeout time.Duration

	// RetryInterval spaces watchdog retries once the first one fired.
	RetryInterval time.Duration
}

// DefaultConfig returns the policy used against a 60s proxy limit.
func DefaultConfig() Config {
	return Config{
		BackoffBase:       time.Second,
		BackoffMax:        10 * time.Second,
		Jitter:            250 * time.Millisecond,
		MaxAttempts:       5,
		InactivityTimeout: 65 * time.Second,
		RetryInterval:     5 * time.Second,
	}
}

// Controller is safe for concurrent use. Resume and GiveUp callbacks run on
// timer goroutines without the controller's lock held.
type Controller struct {
	cfg    Config
	clock  Clock
	jitter func() float64
	logger *slog.Logger

	onResume func(attempt int, trigger Trigger)
	onGiveUp func(message string)

	mu         sync.Mutex
	status     Status
	attempts   int
	progressed bool
	lastMetric int
	gaveUp     bool
	pending    Timer
	watchdog   Timer

	// notifyGiveUp is set under mu and consumed by unlockAndNotify.
	notifyGiveUp bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) {
		ctrl.clock = c
	}
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(ctrl *Controller) {
		ctrl.jitter = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) {
		ctrl.logger = l
	}
}

// OnGiveUp sets the callback invoked with TerminalMessage when the attempt
// bound is exceeded.
func OnGiveUp(fn func(message string)) Option {
	return func(ctrl *Controller) {
		ctrl.onGiveUp = fn
	}
}

// New returns a Controller that calls resume for every attempt.
func New(cfg Config, resume func(attempt int, trigger Trigger), opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		clock:    SystemClock{},
		jitter:   rand.Float64,
		logger:   logger.Nop(),
		onResume: resume,
		onGiveUp: func(string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetStatus records a connection status transition.
func (c *Controller) SetStatus(s Status) {
	c.mu.Lock()
	defer c.unlockAndNotify()

	prev := c.status
	c.status = s

	switch s {
	case StatusStreaming:
		if prev != StatusStreaming {
			c.attempts = 0
		}
		c.stopPendingLocked()
		if c.watchdog == nil && !c.gaveUp {
			c.armWatchdogLocked(c.cfg.InactivityTimeout)
		}
	case StatusError:
		if !c.progressed || c.gaveUp {
			c.logger.Debug("not reconnecting", "progressed", c.progressed, "gave_up", c.gaveUp)
			return
		}
		c.scheduleLocked()
	case StatusComplete, StatusIdle:
		c.stopAllLocked()
	}
}

// Progress reports the size of the content rendered so far for the message
// being streamed. Growth counts as activity: it rearms the watchdog and
// clears the attempt counter.
func (c *Controller) Progress(metric int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if metric <= c.lastMetric {
		return
	}
	c.lastMetric = metric
	c.progressed = true
	c.attempts = 0

	if c.status == StatusStreaming && !c.gaveUp {
		c.armWatchdogLocked(c.cfg.InactivityTimeout)
	}
}

// Reset prepares the controller for a new message, lifting a previous
// give-up.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopAllLocked()
	c.status = StatusIdle
	c.attempts = 0
	c.progressed = false
	c.lastMetric = 0
	c.gaveUp = false
}

// Stop cancels every timer.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAllLocked()
}

// Attempts returns the number of attempts made since the last progress.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Status returns the last recorded status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// GaveUp reports whether the attempt bound was exceeded.
func (c *Controller) GaveUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gaveUp
}

// Delay returns the wait before the attempt following n previous ones.
func (c *Controller) Delay(n int) time.Duration {
	if n == 0 {
		return 0
	}
	backoff := c.cfg.BackoffMax
	if n < 31 {
		if d := c.cfg.BackoffBase << n; d > 0 && d < backoff {
			backoff = d
		}
	}
	return backoff + time.Duration(c.jitter()*float64(c.cfg.Jitter))
}

func (c *Controller) scheduleLocked() {
	if c.pending != nil {
		return
	}
	if c.exhaustedLocked() {
		c.giveUpLocked()
		return
	}

	delay := c.Delay(c.attempts)
	c.attempts++
	attempt := c.attempts

	c.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)

	var t Timer
	t = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.pending != t {
			c.mu.Unlock()
			return
		}
		c.pending = nil
		c.mu.Unlock()

		c.onResume(attempt, TriggerError)
	})
	c.pending = t
}

func (c *Controller) armWatchdogLocked(d time.Duration) {
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
	if d <= 0 {
		c.watchdog = nil
		return
	}

	wait := d + time.Duration(c.jitter()*float64(c.cfg.Jitter))
	var t Timer
	t = c.clock.AfterFunc(wait, func() {
		c.onWatchdog(t)
	})
	c.watchdog = t
}

func (c *Controller) onWatchdog(t Timer) {
	c.mu.Lock()
	if c.watchdog != t {
		c.mu.Unlock()
		return
	}
	c.watchdog = nil

	if c.status == StatusComplete || c.status == StatusIdle || c.gaveUp {
		c.mu.Unlock()
		return
	}
	// an error-triggered attempt is already on its way
	if c.pending != nil {
		c.armWatchdogLocked(c.cfg.RetryInterval)
		c.mu.Unlock()
		return
	}
	if c.exhaustedLocked() {
		c.giveUpLocked()
		c.unlockAndNotify()
		return
	}

	c.attempts++
	attempt := c.attempts
	c.armWatchdogLocked(c.cfg.RetryInterval)
	c.mu.Unlock()

	c.logger.Info("stream inactive, reconnecting", "attempt", attempt)
	c.onResume(attempt, TriggerInactivity)
}

func (c *Controller) exhaustedLocked() bool {
	return c.cfg.MaxAttempts > 0 && c.attempts >= c.cfg.MaxAttempts
}

func (c *Controller) giveUpLocked() {
	c.gaveUp = true
	c.stopAllLocked()
	c.notifyGiveUp = true
	c.logger.Warn("giving up on reconnect", "attempts", c.attempts)
}

// unlockAndNotify releases c.mu and then delivers a pending give-up.
func (c *Controller) unlockAndNotify() {
	notify := c.notifyGiveUp
	c.notifyGiveUp = false
	c.mu.Unlock()

	if notify {
		c.onGiveUp(TerminalMessage)
	}
}

func (c *Controller) stopPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) stopAllLocked() {
	c.stopPendingLocked()
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}
