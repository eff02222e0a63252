// Package client is the chat client side of the relay: it sends a message,
// renders the streamed reply and, when the connection drops or stalls,
// resumes from the relay's stream cache without showing duplicate text.
package client

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/reconnect"
)

const (
	// HeaderUser and HeaderEmail carry the caller's identity, as set by the
	// authenticating proxy in front of the relay.
	HeaderUser  = "X-Forwarded-User"
	HeaderEmail = "X-Forwarded-Email"

	// HeaderStreamID names the stream created by POST /chat.
	HeaderStreamID = "X-Stream-Id"

	// StreamDataName is the data event the relay emits with the stream id.
	StreamDataName = "stream"
)

var (
	// ErrGaveUp is returned when the reconnect attempts were exhausted.
	// The Result still holds everything received.
	ErrGaveUp = errors.New(reconnect.TerminalMessage)

	// ErrNothingToResume is returned by Resume when the session has no
	// active stream.
	ErrNothingToResume = errors.New("nothing to resume")
)

// Config configures a Session.
type Config struct {
	// BaseURL is the relay address, e.g. "http://localhost:8080".
	BaseURL string

	User  string
	Email string

	// Model is forwarded to the relay when set.
	Model string

	Reconnect reconnect.Config
}

// Session is one chat conversation against the relay. A Session runs one
// message at a time and is not safe for concurrent use.
type Session struct {
	id     string
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	render func(message.Message)

	clock reconnect.Clock
	rand  func() float64
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		s.http = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithRenderer registers fn to receive the message to display after every
// event. The rendered content never shrinks, including across resumes.
func WithRenderer(fn func(message.Message)) Option {
	return func(s *Session) {
		s.render = fn
	}
}

// WithClock sets the clock driving reconnect timers.
func WithClock(c reconnect.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithRand sets the jitter source for reconnect delays.
func WithRand(fn func() float64) Option {
	return func(s *Session) {
		s.rand = fn
	}
}

// NewSession creates a session with the given id.
func NewSession(id string, cfg Config, opts ...Option) *Session {
	s := &Session{
		id:     id,
		cfg:    cfg,
		http:   http.DefaultClient,
		logger: logger.Nop(),
		render: func(message.Message) {},
	}
	s.cfg.BaseURL = strings.TrimRight(s.cfg.BaseURL, "/")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}
