package stream

import (
	"log/slog"

	"github.com/papercomputeco/relay/pkg/logger"
)

// Pipeline turns adapter events into the canonical output stream for one
// generation: raw filtering, tool tag extraction, run splitting and boundary
// normalization, followed by the Deduper. A Pipeline is not safe for
// concurrent use; each producer owns its own.
type Pipeline struct {
	composer *Composer
	dedup    *Deduper
	logger   *slog.Logger
}

type pipelineConfig struct {
	keepRaw func(Event) bool
	extra   []Transformer
	logger  *slog.Logger
}

// PipelineOption configures NewPipeline.
type PipelineOption func(*pipelineConfig)

// WithRawFilter keeps raw events for which keep returns true.
func WithRawFilter(keep func(Event) bool) PipelineOption {
	return func(c *pipelineConfig) {
		c.keepRaw = keep
	}
}

// WithTransformer adds a stage that runs after tool tag extraction and
// before boundary normalization.
func WithTransformer(t Transformer) PipelineOption {
	return func(c *pipelineConfig) {
		c.extra = append(c.extra, t)
	}
}

// WithLogger sets the logger used to report recovered transformer panics.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(c *pipelineConfig) {
		c.logger = l
	}
}

func NewPipeline(opts ...PipelineOption) *Pipeline {
	cfg := &pipelineConfig{logger: logger.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}

	stages := []Transformer{FilterRaw(cfg.keepRaw), ExtractToolTags}
	stages = append(stages, cfg.extra...)
	stages = append(stages, NewRunSplitter().Transform, NormalizeBoundaries)

	return &Pipeline{
		composer: NewComposer(stages...),
		dedup:    NewDeduper(),
		logger:   cfg.logger,
	}
}

// Push feeds one adapter event and returns the events to emit downstream.
func (p *Pipeline) Push(ev Event) []Event {
	transformed := p.transform(ev)

	out := make([]Event, 0, len(transformed))
	for _, t := range transformed {
		if fwd, ok := p.dedup.Push(t); ok {
			out = append(out, fwd)
		}
	}
	return out
}

// Flush returns the events that close the stream. Call it once after the
// last Push.
func (p *Pipeline) Flush() []Event {
	if end, ok := p.dedup.Flush(); ok {
		return []Event{end}
	}
	return nil
}

// transform runs the composed stages, passing ev through untouched if a
// stage panics.
func (p *Pipeline) transform(ev Event) (out []Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("stream transformer panicked, passing event through",
				"type", string(ev.Type),
				"error", r,
			)
			out = []Event{ev}
		}
	}()

	out, _ = p.composer.Apply([]Event{ev})
	return out
}
