package client

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/reconnect"
	"github.com/papercomputeco/relay/pkg/replay"
	"github.com/papercomputeco/relay/pkg/sse"
	"github.com/papercomputeco/relay/pkg/stream"
)

// Send posts text as a new user message and follows the reply to its end,
// resuming as needed. The returned Result is non-nil whenever the stream was
// opened, including when an error is returned.
func (s *Session) Send(ctx context.Context, text string) (*Result, error) {
	r := s.newRun(ctx)

	connCtx, cancel := context.WithCancel(ctx)
	resp, err := s.postChat(connCtx, text)
	if err != nil {
		cancel()
		r.ctrl.Stop()
		return nil, err
	}
	r.result.StreamID = resp.Header.Get(HeaderStreamID)
	r.attach(connCtx, cancel, resp.Body)

	return r.loop(ctx)
}

// Resume attaches to the session's active stream, replaying it from the
// start and following it to its end.
func (s *Session) Resume(ctx context.Context) (*Result, error) {
	r := s.newRun(ctx)

	connCtx, cancel := context.WithCancel(ctx)
	resp, err := s.getStream(connCtx)
	if err != nil {
		cancel()
		r.ctrl.Stop()
		return nil, err
	}
	if resp == nil {
		cancel()
		r.ctrl.Stop()
		return nil, ErrNothingToResume
	}
	r.attach(connCtx, cancel, resp.Body)

	return r.loop(ctx)
}

type readItem struct {
	ev   stream.Event
	err  error
	done bool
}

// run is the state of one message being received.
type run struct {
	s      *Session
	msgID  string
	ctrl   *reconnect.Controller
	dedup  *replay.Deduper
	asm    *message.Assembler
	timer  *timer
	result *Result

	// resume and giveUp are fed from controller timers
	resume chan int
	giveUp chan string

	events chan readItem
	cancel context.CancelFunc
}

func (s *Session) newRun(ctx context.Context) *run {
	r := &run{
		s:      s,
		msgID:  uuid.NewString(),
		dedup:  replay.New(),
		timer:  newTimer(),
		result: &Result{},
		resume: make(chan int, 1),
		giveUp: make(chan string, 1),
	}

	opts := []reconnect.Option{
		reconnect.WithLogger(s.logger),
		reconnect.OnGiveUp(func(msg string) {
			select {
			case r.giveUp <- msg:
			default:
			}
		}),
	}
	if s.clock != nil {
		opts = append(opts, reconnect.WithClock(s.clock))
	}
	if s.rand != nil {
		opts = append(opts, reconnect.WithRand(s.rand))
	}

	cfg := s.cfg.Reconnect
	if cfg == (reconnect.Config{}) {
		cfg = reconnect.DefaultConfig()
	}
	r.ctrl = reconnect.New(cfg, func(attempt int, trigger reconnect.Trigger) {
		s.logger.Info("resuming stream",
			"session_id", s.id,
			"attempt", attempt,
			"trigger", string(trigger),
		)
		select {
		case r.resume <- attempt:
		default:
		}
	}, opts...)

	return r
}

// attach starts reading a new connection. Replayed streams start from the
// beginning, so a fresh assembler is used for each one.
func (r *run) attach(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser) {
	r.detach()
	r.cancel = cancel
	r.events = make(chan readItem)
	r.asm = message.NewAssembler(r.msgID)
	go r.s.readEvents(ctx, body, r.events)
	r.ctrl.SetStatus(reconnect.StatusStreaming)
}

func (r *run) detach() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.events = nil
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	for {
		select {
		case it := <-r.events:
			if it.err == nil && !it.done {
				if r.handle(it.ev) {
					return r.finish(), nil
				}
				continue
			}

			r.detach()
			cause := it.err
			if cause == nil {
				cause = io.ErrUnexpectedEOF
			}
			r.s.logger.Warn("stream interrupted", "session_id", r.s.id, "error", cause)

			if r.result.Message.ActivityMetric() == 0 {
				r.finish()
				return r.result, fmt.Errorf("stream ended before any content: %w", cause)
			}
			r.ctrl.SetStatus(reconnect.StatusError)

		case <-r.resume:
			r.detach()
			connCtx, cancel := context.WithCancel(ctx)
			resp, err := r.s.getStream(connCtx)
			if err != nil {
				cancel()
				if ctx.Err() != nil {
					continue
				}
				r.s.logger.Warn("resume failed", "session_id", r.s.id, "error", err)
				r.ctrl.SetStatus(reconnect.StatusError)
				continue
			}
			if resp == nil {
				cancel()
				r.s.logger.Info("nothing to resume", "session_id", r.s.id)
				r.ctrl.SetStatus(reconnect.StatusIdle)
				return r.finish(), nil
			}
			r.result.Resumes++
			r.attach(connCtx, cancel, resp.Body)

		case msg := <-r.giveUp:
			r.detach()
			r.finish()
			return r.result, fmt.Errorf("%w (%s)", ErrGaveUp, msg)

		case <-ctx.Done():
			r.finish()
			return r.result, ctx.Err()
		}
	}
}

// handle applies one event and reports whether the stream finished.
func (r *run) handle(ev stream.Event) bool {
	r.timer.mark()

	if ev.IsData() {
		if r.dedup.SeenData(ev.ID) {
			return false
		}
		if ev.Type == stream.DataPrefix+StreamDataName && r.result.StreamID == "" {
			r.result.StreamID = ev.ID
		}
	}

	r.asm.Apply(ev)
	shown := r.dedup.Apply(r.asm.Message())
	r.result.Message = shown
	r.result.Errors = r.asm.Errors()
	r.s.render(shown)
	r.ctrl.Progress(shown.ActivityMetric())

	if !r.asm.Finished() {
		return false
	}
	r.result.Complete = true
	r.result.FinishReason = r.asm.FinishReason()
	r.result.Usage = r.asm.Usage()
	r.ctrl.SetStatus(reconnect.StatusComplete)
	return true
}

func (r *run) finish() *Result {
	r.ctrl.Stop()
	r.detach()
	r.result.Timing = r.timer.timing()
	r.s.logger.Info("stream timing",
		"session_id", r.s.id,
		"stream_id", r.result.StreamID,
		"ttfb_ms", r.result.Timing.TTFB.Milliseconds(),
		"total_ms", r.result.Timing.Total.Milliseconds(),
		"resumes", r.result.Resumes,
		"complete", r.result.Complete,
	)
	return r.result
}

// readEvents decodes canonical events from body until it ends or ctx is
// done. Undecodable events are skipped.
func (s *Session) readEvents(ctx context.Context, body io.ReadCloser, out chan<- readItem) {
	defer body.Close()

	send := func(it readItem) bool {
		select {
		case out <- it:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := sse.NewReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			send(readItem{err: err})
			return
		}
		if ev == nil || ev.IsDone() {
			send(readItem{done: true})
			return
		}

		decoded, err := stream.Decode(ev.Data)
		if err != nil {
			s.logger.Warn("skipping undecodable event", "session_id", s.id, "error", err)
			continue
		}
		if !send(readItem{ev: decoded}) {
			return
		}
	}
}
