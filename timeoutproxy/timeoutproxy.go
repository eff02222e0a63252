// Package timeoutproxy is a development reverse proxy that destroys every
// client connection a fixed time after it was accepted, mid-response or
// not. Put it between the chat client and the relay to reproduce
// intermediaries that cut long-lived streams.
package timeoutproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/relay/pkg/logger"
)

// DefaultTimeout is the connection lifetime of the intermediary being
// reproduced.
const DefaultTimeout = 60 * time.Second

// Config configures the proxy.
type Config struct {
	ListenAddr string

	// Target is the relay URL, e.g. "http://localhost:8080".
	Target string

	// Timeout is how long a connection may live. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Proxy forwards requests to the target and kills connections that
// outlive the timeout.
type Proxy struct {
	config Config
	server *http.Server
	logger *slog.Logger
	killed atomic.Int64
}

// New creates a Proxy.
func New(cfg Config, log *slog.Logger) (*Proxy, error) {
	target, err := url.Parse(cfg.Target)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid target url %q", cfg.Target)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	// Flush every write so event streams are not held back.
	rp.FlushInterval = -1
	rp.ErrorLog = slog.NewLogLogger(log.Handler(), slog.LevelDebug)

	p := &Proxy{config: cfg, logger: log}
	p.server = &http.Server{
		Handler:           rp,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return p, nil
}

// Run listens on the configured address.
func (p *Proxy) Run() error {
	ln, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return err
	}
	return p.RunWithListener(ln)
}

// RunWithListener serves on ln until Close.
func (p *Proxy) RunWithListener(ln net.Listener) error {
	p.logger.Info("starting timeout proxy",
		"listen", ln.Addr().String(),
		"target", p.config.Target,
		"timeout", p.config.Timeout,
	)

	err := p.server.Serve(&killListener{Listener: ln, proxy: p})
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Killed returns how many connections were destroyed by the timeout.
func (p *Proxy) Killed() int64 {
	return p.killed.Load()
}

// Close stops the proxy.
func (p *Proxy) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.server.Shutdown(ctx)
}

type killListener struct {
	net.Listener
	proxy *Proxy
}

func (l *killListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	kc := &killConn{Conn: conn}
	kc.timer = time.AfterFunc(l.proxy.config.Timeout, func() {
		if kc.closeOnce() {
			l.proxy.killed.Add(1)
			l.proxy.logger.Info("destroying connection", "remote", conn.RemoteAddr().String())
		}
	})
	return kc, nil
}

type killConn struct {
	net.Conn
	timer *time.Timer
	once  sync.Once
}

// closeOnce closes the connection and reports whether this call did it.
func (c *killConn) closeOnce() bool {
	closed := false
	c.once.Do(func() {
		closed = true
		_ = c.Conn.Close()
	})
	return closed
}

func (c *killConn) Close() error {
	c.timer.Stop()
	c.closeOnce()
	return nil
}
