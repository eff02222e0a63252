package streamcache

import (
	"sync"
	"sync/atomic"
	"time"
)

// entry is the buffered output of one stream. chunks is append-only: readers
// may keep a slice of it after releasing the lock.
type entry struct {
	sessionID string
	streamID  string
	createdAt time.Time

	// unix nanos
	lastAccess  atomic.Int64
	subscribers atomic.Int32

	mu     sync.RWMutex
	chunks [][]byte
	closed bool
	// wake is closed and replaced whenever chunks grows or the entry closes.
	wake chan struct{}
}

func newEntry(sessionID, streamID string, now time.Time) *entry {
	e := &entry{
		sessionID: sessionID,
		streamID:  streamID,
		createdAt: now,
		wake:      make(chan struct{}),
	}
	e.touch(now)
	return e
}

func (e *entry) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
}

func (e *entry) idleSince() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

func (e *entry) append(chunk []byte) error {
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrStreamClosed
	}
	e.chunks = append(e.chunks, owned)
	close(e.wake)
	e.wake = make(chan struct{})
	return nil
}

// snapshot returns the chunks from cursor on, whether the entry is closed,
// and a channel that is closed on the next change.
func (e *entry) snapshot(cursor int) ([][]byte, bool, <-chan struct{}) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if cursor > len(e.chunks) {
		cursor = len(e.chunks)
	}
	n := len(e.chunks)
	return e.chunks[cursor:n:n], e.closed, e.wake
}

func (e *entry) len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks)
}

func (e *entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	close(e.wake)
}
