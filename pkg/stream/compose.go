package stream

// Transformer rewrites a batch of incoming events given the last event the
// stage emitted previously (nil if none). It returns the output batch and
// the stage's new last event, or the supplied last when it emitted nothing.
type Transformer func(events []Event, last *Event) ([]Event, *Event)

// Compose folds the transformers left to right into a single Transformer.
// Every stage sees the supplied last; the result's last is the final
// stage's last, falling back to the supplied one.
func Compose(stages ...Transformer) Transformer {
	return func(events []Event, last *Event) ([]Event, *Event) {
		out := events
		final := last
		for _, stage := range stages {
			var stageLast *Event
			out, stageLast = stage(out, last)
			final = stageLast
		}
		if final == nil {
			final = last
		}
		return out, final
	}
}

// Composer chains transformers and remembers each stage's own last event
// between calls, so stages never see another stage's output as their last.
type Composer struct {
	stages []Transformer
	lasts  []*Event
}

// NewComposer returns a Composer over stages.
func NewComposer(stages ...Transformer) *Composer {
	return &Composer{
		stages: stages,
		lasts:  make([]*Event, len(stages)),
	}
}

// Apply runs events through every stage in order and returns the output
// batch and the last event emitted by the final stage so far.
func (c *Composer) Apply(events []Event) ([]Event, *Event) {
	out := events
	for i, stage := range c.stages {
		var last *Event
		out, last = stage(out, c.lasts[i])
		if last != nil {
			c.lasts[i] = last
		}
	}
	if len(c.lasts) == 0 {
		return out, nil
	}
	return out, c.lasts[len(c.lasts)-1]
}
