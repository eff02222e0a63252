// Package streamcache buffers the encoded output of in-flight streams so a
// client that lost its connection can replay everything produced so far.
//
// The cache is process local. Each session has at most one active stream;
// starting a new one replaces the old. Entries are removed when their
// producer completes them, when the session is cleared, or after sitting
// idle for the TTL.
package streamcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/relay/pkg/logger"
)

// ErrStreamClosed is returned by StoreChunk for a stream that was already
// completed, cleared or superseded.
var ErrStreamClosed = errors.New("stream closed")

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry // stream id -> entry
	active  map[string]string // session id -> stream id
	// stream ids that may no longer be written, with the time they closed
	tombstones map[string]time.Time

	ttl       atomic.Int64
	now       func() time.Time
	logger    *slog.Logger

	obsMu     sync.RWMutex
	observers []Observer

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Cache and, unless disabled, starts its background sweep.
func New(opts ...Option) *Cache {
	cfg := &config{
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Cache{
		entries:    make(map[string]*entry),
		active:     make(map[string]string),
		tombstones: make(map[string]time.Time),
		now:        cfg.now,
		logger:     cfg.logger,
		observers:  cfg.observers,
		stop:       make(chan struct{}),
	}
	c.ttl.Store(int64(cfg.ttl))

	if cfg.sweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(cfg.sweepInterval)
	}

	return c
}

// StoreChunk appends chunk to the stream's buffer, creating the entry and
// making it the session's active stream on first write.
func (c *Cache) StoreChunk(streamID, sessionID string, chunk []byte) error {
	now := c.now()
	var notes []Lifecycle

	c.mu.Lock()
	if _, dead := c.tombstones[streamID]; dead {
		c.mu.Unlock()
		return ErrStreamClosed
	}

	e, ok := c.entries[streamID]
	if !ok {
		if prev, ok := c.active[sessionID]; ok && prev != streamID {
			if old := c.removeLocked(prev, now); old != nil {
				notes = append(notes, c.note(LifecycleSuperseded, old, now))
			}
		}

		e = newEntry(sessionID, streamID, now)
		c.entries[streamID] = e
		c.active[sessionID] = streamID
		notes = append(notes, c.note(LifecycleCreated, e, now))
	}
	c.mu.Unlock()

	c.notify(notes...)

	if err := e.append(chunk); err != nil {
		return err
	}
	e.touch(now)
	return nil
}

// ActiveStreamID returns the session's active stream id.
func (c *Cache) ActiveStreamID(sessionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.active[sessionID]
	return id, ok
}

// Chunks returns a snapshot of every chunk buffered for the stream, in write
// order. The snapshot is not affected by later writes.
func (c *Cache) Chunks(streamID string) ([][]byte, bool) {
	e, ok := c.lookup(streamID)
	if !ok {
		return nil, false
	}
	e.touch(c.now())

	chunks, _, _ := e.snapshot(0)
	return chunks, true
}

// Complete marks the stream finished and removes it. Producers call it once,
// after their last StoreChunk.
func (c *Cache) Complete(streamID string) {
	now := c.now()

	c.mu.Lock()
	e := c.removeLocked(streamID, now)
	c.mu.Unlock()

	if e != nil {
		c.logger.Debug("stream completed", "stream_id", streamID, "session_id", e.sessionID, "chunks", e.len())
		c.notify(c.note(LifecycleCompleted, e, now))
	}
}

// ClearActive drops the session's active stream, if any.
func (c *Cache) ClearActive(sessionID string) {
	now := c.now()

	c.mu.Lock()
	var e *entry
	if id, ok := c.active[sessionID]; ok {
		e = c.removeLocked(id, now)
	}
	c.mu.Unlock()

	if e != nil {
		c.logger.Debug("active stream cleared", "stream_id", e.streamID, "session_id", sessionID)
		c.notify(c.note(LifecycleCleared, e, now))
	}
}

// Subscribe returns a channel that yields the stream's chunks from cursor on,
// first the buffered ones and then live ones as they are written. The channel
// is closed when the stream is removed from the cache or ctx is done.
func (c *Cache) Subscribe(ctx context.Context, streamID string, cursor int) (<-chan []byte, bool) {
	e, ok := c.lookup(streamID)
	if !ok {
		return nil, false
	}
	e.touch(c.now())
	e.subscribers.Add(1)

	if cursor < 0 {
		cursor = 0
	}

	ch := make(chan []byte)
	go func() {
		defer close(ch)
		defer e.subscribers.Add(-1)

		for {
			chunks, closed, wake := e.snapshot(cursor)
			for _, chunk := range chunks {
				select {
				case ch <- chunk:
					cursor++
				case <-ctx.Done():
					return
				}
			}
			if closed && len(chunks) == 0 {
				return
			}
			if len(chunks) > 0 {
				continue
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, true
}

// SetTTL changes the idle TTL used by subsequent sweeps.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl.Store(int64(ttl))
	}
}

// TTL returns the current idle TTL.
func (c *Cache) TTL() time.Duration {
	return time.Duration(c.ttl.Load())
}

// Sweep evicts entries idle for longer than the TTL and forgets tombstones
// older than the TTL. It runs periodically in the background and may be
// called directly.
func (c *Cache) Sweep() int {
	now := c.now()
	ttl := c.TTL()
	var notes []Lifecycle

	c.mu.Lock()
	for id, e := range c.entries {
		if now.Sub(e.idleSince()) > ttl {
			c.removeLocked(id, now)
			notes = append(notes, c.note(LifecycleExpired, e, now))
		}
	}
	for id, at := range c.tombstones {
		if now.Sub(at) > ttl {
			delete(c.tombstones, id)
		}
	}
	c.mu.Unlock()

	if len(notes) > 0 {
		c.logger.Info("expired idle streams", "count", len(notes))
	}
	c.notify(notes...)
	return len(notes)
}

// Close stops the background sweep and ends every live subscription. The
// cache must not be used afterwards.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()

	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.entries = make(map[string]*entry)
	c.active = make(map[string]string)
	c.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) lookup(streamID string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[streamID]
	return e, ok
}

// removeLocked deletes the entry, its active index and tombstones the id.
// c.mu must be held.
func (c *Cache) removeLocked(streamID string, now time.Time) *entry {
	e, ok := c.entries[streamID]
	if !ok {
		return nil
	}
	delete(c.entries, streamID)
	if c.active[e.sessionID] == streamID {
		delete(c.active, e.sessionID)
	}
	c.tombstones[streamID] = now
	e.close()
	return e
}

func (c *Cache) note(kind LifecycleKind, e *entry, now time.Time) Lifecycle {
	return Lifecycle{
		Kind:      kind,
		StreamID:  e.streamID,
		SessionID: e.sessionID,
		Chunks:    e.len(),
		At:        now,
	}
}

// AddObserver registers fn like WithObserver, for owners created after the
// cache.
func (c *Cache) AddObserver(fn Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Cache) notify(notes ...Lifecycle) {
	if len(notes) == 0 {
		return
	}

	c.obsMu.RLock()
	observers := c.observers
	c.obsMu.RUnlock()

	for _, n := range notes {
		for _, obs := range observers {
			obs(n)
		}
	}
}
