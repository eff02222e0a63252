package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/sse"
	"github.com/papercomputeco/relay/pkg/stream"
)

// Framing is how an upstream body delimits chunks.
type Framing int

const (
	// FramingSSE is text/event-stream: one chunk per data payload.
	FramingSSE Framing = iota

	// FramingNDJSON is newline-delimited JSON, used by Ollama.
	FramingNDJSON
)

// FramingFor picks the framing from a response Content-Type.
func FramingFor(contentType string) Framing {
	if strings.HasPrefix(contentType, "text/event-stream") {
		return FramingSSE
	}
	return FramingNDJSON
}

// StreamOptions configures Stream.
type StreamOptions struct {
	// IncludeRaw emits a raw event carrying every upstream chunk before the
	// events decoded from it.
	IncludeRaw bool

	Logger *slog.Logger
}

// Stream reads the upstream body chunk by chunk, decodes each with prov and
// calls emit for every canonical event: stream-start first and finish last.
// A nil prov is detected from the first recognizable chunk.
//
// Per-chunk problems (unrecognized, invalid, undecodable) become error
// events and the stream continues. A read failure becomes an error event,
// the stream is finished with reason "error", and the failure is returned.
func Stream(ctx context.Context, body io.Reader, framing Framing, prov Provider, opts StreamOptions, emit func(stream.Event)) error {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &streamer{
		prov:     prov,
		detector: NewDetector(),
		opts:     opts,
		logger:   log,
		emit:     emit,
	}
	if prov != nil {
		s.dec = prov.NewDecoder()
	}

	emit(stream.Event{Type: stream.TypeStreamStart})

	readErr := s.read(ctx, body, framing)
	if readErr != nil {
		s.failed = true
		emit(stream.ErrorEvent(readErr.Error()))
	}
	s.finish()
	return readErr
}

type streamer struct {
	prov     Provider
	dec      llm.StreamDecoder
	detector *Detector
	opts     StreamOptions
	logger   *slog.Logger
	emit     func(stream.Event)
	failed   bool
}

func (s *streamer) read(ctx context.Context, body io.Reader, framing Framing) error {
	if framing == FramingSSE {
		r := sse.NewReader(body)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			ev, err := r.Next()
			if err != nil {
				return err
			}
			if ev == nil {
				return nil
			}
			if ev.IsDone() || strings.TrimSpace(ev.Data) == "" {
				continue
			}
			s.chunk([]byte(ev.Data))
		}
	}

	scanner := bufio.NewScanner(body)
	// Increase buffer size for large chunks
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		chunk := make([]byte, len(line))
		copy(chunk, line)
		s.chunk(chunk)
	}
	return scanner.Err()
}

func (s *streamer) chunk(chunk []byte) {
	if s.opts.IncludeRaw {
		raw := json.RawMessage(chunk)
		if !json.Valid(chunk) {
			raw, _ = json.Marshal(string(chunk))
		}
		s.emit(stream.Event{Type: stream.TypeRaw, RawValue: raw})
	}

	if s.prov == nil {
		p, err := s.detector.Detect(chunk)
		if err != nil {
			s.fail(err)
			return
		}
		s.logger.Debug("detected upstream provider", "provider", p.Name())
		s.prov = p
		s.dec = p.NewDecoder()
	}

	if err := Validate(s.prov, chunk); err != nil {
		s.fail(err)
		return
	}

	events, err := s.dec.Decode(chunk)
	if err != nil {
		s.fail(err)
		return
	}
	for _, ev := range events {
		s.emit(ev)
	}
}

func (s *streamer) fail(err error) {
	s.logger.Warn("skipping upstream chunk", "error", err)
	s.failed = true
	s.emit(stream.ErrorEvent(err.Error()))
}

func (s *streamer) finish() {
	if s.dec == nil {
		reason := stream.FinishUnknown
		if s.failed {
			reason = stream.FinishError
		}
		s.emit(stream.Finish(reason, nil))
		return
	}

	for _, ev := range s.dec.Finish() {
		if ev.Type == stream.TypeFinish && s.failed {
			ev.FinishReason = stream.FinishError
		}
		s.emit(ev)
	}
}
