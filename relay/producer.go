package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/llm/provider"
	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/sse"
	"github.com/papercomputeco/relay/pkg/stream"
	"github.com/papercomputeco/relay/pkg/streamcache"
	"github.com/papercomputeco/relay/relay/worker"
)

// streamDataName is the data event announcing the stream id to clients.
const streamDataName = "stream"

// producer consumes one upstream generation and fans the canonical events
// out to the requesting client and the stream cache. It keeps going when
// the client disconnects, so the cache holds the whole stream for resumes.
type producer struct {
	relay     *Relay
	sessionID string
	streamID  string
	user      string
	prompt    llm.Message
	resp      *http.Response
	cancel    context.CancelFunc
	logger    *slog.Logger
	startTime time.Time

	// pw is nil once the client went away
	pw *io.PipeWriter

	// superseded is set when the cache refused a write: the session moved
	// on to a newer stream
	superseded bool

	pipeline  *stream.Pipeline
	asm       *message.Assembler
	announced bool
	chunks    int
}

func (p *producer) run(ctx context.Context) {
	defer p.relay.producers.Done()
	defer p.cancel()
	defer p.resp.Body.Close()

	opts := []stream.PipelineOption{stream.WithLogger(p.logger)}
	if p.relay.config.IncludeRaw {
		opts = append(opts, stream.WithRawFilter(func(stream.Event) bool { return true }))
	}
	p.pipeline = stream.NewPipeline(opts...)
	p.asm = message.NewAssembler(p.streamID)

	err := provider.Stream(ctx, p.resp.Body,
		provider.FramingFor(p.resp.Header.Get("Content-Type")),
		p.relay.provider,
		provider.StreamOptions{IncludeRaw: p.relay.config.IncludeRaw, Logger: p.logger},
		p.emit,
	)
	if err != nil {
		metrics.Add("upstream_errors", 1)
		p.logger.Warn("upstream stream failed", "error", err)
	}

	for _, ev := range p.pipeline.Flush() {
		p.write(ev)
	}
	p.writeChunk(sse.DoneFrame())

	p.relay.cache.Complete(p.streamID)
	p.closeDownstream(nil)

	p.logger.Info("stream complete",
		"chunks", p.chunks,
		"finish_reason", string(p.asm.FinishReason()),
		"duration", time.Since(p.startTime),
	)
	p.persist()
}

func (p *producer) emit(ev stream.Event) {
	for _, out := range p.pipeline.Push(ev) {
		p.write(out)
	}
}

func (p *producer) write(ev stream.Event) {
	chunk, err := stream.Encode(ev)
	if err != nil {
		p.logger.Error("dropping unencodable event", "type", string(ev.Type), "error", err)
		return
	}
	p.asm.Apply(ev)
	p.writeChunk(chunk)

	if ev.Type == stream.TypeStreamStart && !p.announced {
		p.announced = true
		data, _ := json.Marshal(map[string]string{"sessionId": p.sessionID})
		p.write(stream.DataEvent(streamDataName, p.streamID, data))
	}
}

func (p *producer) writeChunk(chunk []byte) {
	p.chunks++

	if !p.superseded {
		err := p.relay.cache.StoreChunk(p.streamID, p.sessionID, chunk)
		if errors.Is(err, streamcache.ErrStreamClosed) {
			p.superseded = true
			p.logger.Info("stream superseded, no longer buffering")
		} else if err != nil {
			p.logger.Error("failed to buffer chunk", "error", err)
		}
	}

	if p.pw != nil {
		// pw.Write blocks until fasthttp reads from the pipe and flushes
		// to the TCP socket.
		if _, err := p.pw.Write(chunk); err != nil {
			p.logger.Info("client disconnected, continuing upstream", "error", err)
			p.closeDownstream(err)
		}
	}

	// Nobody can observe the rest of this stream.
	if p.superseded && p.pw == nil {
		p.cancel()
	}
}

func (p *producer) closeDownstream(err error) {
	if p.pw == nil {
		return
	}
	if err != nil {
		p.pw.CloseWithError(err)
	} else {
		p.pw.Close()
	}
	p.pw = nil
}

// persist hands the finished turn to the worker pool.
func (p *producer) persist() {
	resp := toLLMMessage(p.asm.Message())
	if len(resp.Content) == 0 {
		p.logger.Debug("nothing to persist")
		return
	}

	p.relay.workerPool.Enqueue(worker.Job{Turn: &llm.ConversationTurn{
		SessionID:    p.sessionID,
		StreamID:     p.streamID,
		User:         p.user,
		Provider:     p.relay.config.ProviderType,
		Prompt:       p.prompt,
		Response:     resp,
		FinishReason: string(p.asm.FinishReason()),
		Usage:        toLLMUsage(p.asm.Usage()),
		CreatedAt:    p.startTime,
	}})
}
