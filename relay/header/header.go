// Package header handles headers on both legs of the relay:
//
//	Client <--> Relay <--> Upstream LLM endpoint
//
// Identity headers set by the authenticating proxy in front of the relay
// are read here and never forwarded upstream.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/relay/pkg/utils"
)

const (
	// UserHeader and EmailHeader carry the caller's identity.
	UserHeader  = "X-Forwarded-User"
	EmailHeader = "X-Forwarded-Email"

	// StreamIDHeader names the stream created by POST /chat.
	StreamIDHeader = "X-Stream-Id"
)

// skipRequest is the set of request headers (client --> relay --> upstream)
// that are not forwarded to the upstream LLM endpoint.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// The Host header is rewritten by Go's http.Transport to match the
	// upstream URL.
	"Host": {},

	// Accept-Encoding is stripped so that Go's http.Transport adds its own
	// "Accept-Encoding: gzip" and transparently decompresses the upstream
	// response.
	"Accept-Encoding": {},

	// The upstream body is built by the relay, not copied from the client.
	"Content-Length": {},
	"Content-Type":   {},
	"Accept":         {},

	"Cookie":    {},
	UserHeader:  {},
	EmailHeader: {},
}

// Handler manages headers between relay connections.
type Handler struct {
	token string
}

// Option configures a Handler.
type Option func(*Handler)

// WithUpstreamToken sends token as a bearer credential on every upstream
// request, replacing any Authorization header from the client.
func WithUpstreamToken(token string) Option {
	return func(h *Handler) {
		h.token = token
	}
}

// NewHandler creates a new header Handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Identity returns the caller's user and email. An empty user means the
// request is unauthenticated.
func (h *Handler) Identity(c *fiber.Ctx) (user, email string) {
	return strings.TrimSpace(c.Get(UserHeader)), strings.TrimSpace(c.Get(EmailHeader))
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the relay should not
// forward, and marks the request as a JSON streaming call.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", utils.UserAgent())
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}

// SetStreamHeaders prepares the client response for a canonical event
// stream.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx, streamID string) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
	if streamID != "" {
		c.Set(StreamIDHeader, streamID)
	}
}
