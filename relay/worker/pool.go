// Package worker provides an asynchronous worker pool for persisting
// finished conversation turns with the provided storage.Driver and
// publishing relay events with the provided eventstream.Publisher.
//
// The pool decouples storage and publishing from the relay's streaming hot
// path so a slow database or broker never stalls token delivery.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/utils"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool. Exactly one of Turn and Event
// is set: a Turn is stored and then announced as a turn-persisted event, an
// Event is only published.
type Job struct {
	Turn  *llm.ConversationTurn
	Event *eventstream.Event
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for transcripts.
	Driver storage.Driver

	// Publisher receives lifecycle and turn events. Optional.
	Publisher eventstream.Publisher

	// Source identifies this relay in published events.
	Source eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes storage and publish jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed so late enqueues cannot send on a closed queue
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed", job.attrs()...)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", job.attrs()...)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", job.attrs()...)
		return false
	}
}

// Publish enqueues event for publishing. It is a no-op without a publisher.
func (p *Pool) Publish(event *eventstream.Event) bool {
	if p.config.Publisher == nil || event == nil {
		return false
	}
	return p.Enqueue(Job{Event: event})
}

// Source returns the event source stamped on events built by the pool.
func (p *Pool) Source() eventstream.EventSource {
	return p.config.Source
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
	defer cancel()

	if job.Turn != nil {
		if err := p.config.Driver.SaveTurn(ctx, job.Turn); err != nil {
			p.logger.Error("transcript storage failed",
				"session_id", job.Turn.SessionID,
				"stream_id", job.Turn.StreamID,
				"error", err,
			)
			return
		}

		p.logger.Info("conversation turn stored",
			"session_id", job.Turn.SessionID,
			"stream_id", job.Turn.StreamID,
			"finish_reason", job.Turn.FinishReason,
		)
		p.logger.Debug("turn content",
			"stream_id", job.Turn.StreamID,
			"prompt", utils.Truncate(job.Turn.Prompt.GetText(), 60),
			"response", utils.Truncate(job.Turn.Response.GetText(), 60),
		)

		if p.config.Publisher == nil {
			return
		}
		job.Event = eventstream.NewTurnEvent(p.config.Source, job.Turn)
	}

	if job.Event == nil || p.config.Publisher == nil {
		return
	}
	if err := p.config.Publisher.Publish(ctx, job.Event); err != nil {
		p.logger.Warn("event publish failed",
			"event_type", job.Event.EventType,
			"session_id", job.Event.SessionID(),
			"error", err,
		)
	}
}

func (j Job) attrs() []any {
	switch {
	case j.Turn != nil:
		return []any{"kind", "turn", "session_id", j.Turn.SessionID, "stream_id", j.Turn.StreamID}
	case j.Event != nil:
		return []any{"kind", "event", "event_type", j.Event.EventType, "session_id", j.Event.SessionID()}
	}
	return []any{"kind", "empty"}
}
