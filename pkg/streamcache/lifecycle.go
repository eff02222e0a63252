package streamcache

import "time"

// LifecycleKind names a change in an entry's life.
type LifecycleKind string

const (
	LifecycleCreated    LifecycleKind = "created"
	LifecycleCompleted  LifecycleKind = "completed"
	LifecycleCleared    LifecycleKind = "cleared"
	LifecycleSuperseded LifecycleKind = "superseded"
	LifecycleExpired    LifecycleKind = "expired"
)

// Lifecycle describes one entry transition.
type Lifecycle struct {
	Kind      LifecycleKind
	StreamID  string
	SessionID string
	Chunks    int
	At        time.Time
}

// Observer receives lifecycle notifications.
type Observer func(Lifecycle)
