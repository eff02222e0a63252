// Package relay is the resumable token-stream relay server. It forwards chat
// requests to an upstream LLM endpoint, normalizes the upstream stream into
// canonical events, fans them out to the client and the stream cache, and
// lets a client that lost its connection replay the stream from the cache.
package relay

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/llm/provider"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/streamcache"
	"github.com/papercomputeco/relay/relay/header"
	"github.com/papercomputeco/relay/relay/worker"
)

var metrics = expvar.NewMap("relay")

// Relay serves POST /chat and GET /stream/:sessionId.
type Relay struct {
	config        Config
	cache         *streamcache.Cache
	driver        storage.Driver
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	provider      provider.Provider
	requestProv   provider.Provider
	headerHandler *header.Handler

	// ctx outlives requests: producers keep consuming upstream after the
	// client goes away. It is cancelled by Close.
	ctx       context.Context
	cancel    context.CancelFunc
	producers sync.WaitGroup
}

// Option configures a Relay.
type Option func(*options)

type options struct {
	publisher  eventstream.Publisher
	httpClient *http.Client
	logger     *slog.Logger
}

// WithPublisher publishes stream lifecycle and turn events.
func WithPublisher(p eventstream.Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithHTTPClient replaces the upstream HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a new Relay around a process-scoped cache and transcript
// store. Returns an error if the configured provider type is not recognized.
func New(config Config, cache *streamcache.Cache, driver storage.Driver, opts ...Option) (*Relay, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream url is required")
	}
	if config.ProviderType == "" {
		config.ProviderType = provider.Auto
	}
	if config.UpstreamTimeout <= 0 {
		config.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if config.Source.Service == "" {
		config.Source.Service = "relay"
	}
	if config.Source.Provider == "" {
		config.Source.Provider = config.ProviderType
	}

	o := &options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	prov, err := provider.New(config.ProviderType)
	if err != nil {
		return nil, fmt.Errorf("could not create new provider: %w", err)
	}
	// Detected streams still need a request encoding; chat completions is
	// what the auto-detected endpoints accept.
	requestProv := prov
	if requestProv == nil {
		requestProv, _ = provider.New(provider.OpenAI)
	}

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: o.publisher,
		Source:    config.Source,
		Logger:    o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			// LLM requests can be slow, especially with thinking blocks
			Timeout: config.UpstreamTimeout,
		}
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	// Event streams must not be buffered for compression.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/chat" || strings.HasPrefix(c.Path(), "/stream/")
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		config:        config,
		cache:         cache,
		driver:        driver,
		workerPool:    wp,
		logger:        o.logger,
		httpClient:    httpClient,
		server:        app,
		provider:      prov,
		requestProv:   requestProv,
		headerHandler: header.NewHandler(header.WithUpstreamToken(config.UpstreamToken)),
		ctx:           ctx,
		cancel:        cancel,
	}

	cache.AddObserver(r.observeLifecycle)

	app.Get("/ping", r.handlePing)
	app.Get("/stats", r.handleStats)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	authed := app.Group("", r.requireIdentity)
	authed.Post("/chat", r.handleChat)
	authed.Get("/stream/:sessionId", r.handleResume)

	return r, nil
}

// Run starts the relay server on the configured listening address
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"upstream", r.config.UpstreamURL,
		"provider", r.config.ProviderType,
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"upstream", r.config.UpstreamURL,
		"provider", r.config.ProviderType,
	)

	return r.server.Listener(listener)
}

// App exposes the fiber app, mainly for app.Test in tests.
func (r *Relay) App() *fiber.App {
	return r.server
}

// Close stops accepting requests, cancels in-flight upstream streams and
// waits for the worker pool to drain.
func (r *Relay) Close() error {
	err := r.server.Shutdown()
	r.cancel()
	r.producers.Wait()
	r.workerPool.Close()
	return err
}

func (r *Relay) observeLifecycle(l streamcache.Lifecycle) {
	metrics.Add("streams_"+string(l.Kind), 1)
	r.workerPool.Publish(eventstream.NewStreamEvent(r.workerPool.Source(), string(l.Kind), eventstream.StreamMeta{
		StreamID:  l.StreamID,
		SessionID: l.SessionID,
		Chunks:    l.Chunks,
		At:        l.At,
	}))
}

func (r *Relay) handlePing(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (r *Relay) handleStats(c *fiber.Ctx) error {
	return c.JSON(r.cache.Stats())
}
