package stream

import "strconv"

// RunSplitter gives each uninterrupted run of a (group, id) its own id.
//
// Upstreams reuse one id for every text delta of a response, so text that
// resumes after a tool call would otherwise reopen a run the normalizer
// already closed, and the Deduper would drop it. A run closed by an explicit
// end is not renamed, so genuine duplicates still reach the Deduper under
// their original id.
type RunSplitter struct {
	open        groupKey
	hasOpen     bool
	interrupted map[groupKey]bool
	generation  map[groupKey]int
}

func NewRunSplitter() *RunSplitter {
	return &RunSplitter{
		interrupted: make(map[groupKey]bool),
		generation:  make(map[groupKey]int),
	}
}

// Transform is the splitter's Transformer.
func (s *RunSplitter) Transform(events []Event, last *Event) ([]Event, *Event) {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		out = append(out, s.rename(ev))
	}
	if len(out) == 0 {
		return out, last
	}
	return out, &out[len(out)-1]
}

func (s *RunSplitter) rename(ev Event) Event {
	if ev.Type == TypeRaw {
		return ev
	}

	if ev.Group() == GroupNone {
		s.interrupt()
		return ev
	}

	key := keyOf(ev)
	if s.hasOpen && s.open != key {
		s.interrupt()
	}
	if s.interrupted[key] {
		delete(s.interrupted, key)
		s.generation[key]++
	}

	if ev.Kind() == KindEnd {
		s.hasOpen = false
	} else {
		s.open, s.hasOpen = key, true
	}

	if gen := s.generation[key]; gen > 0 {
		ev.ID = ev.ID + "-" + strconv.Itoa(gen)
	}
	return ev
}

func (s *RunSplitter) interrupt() {
	if s.hasOpen {
		s.interrupted[s.open] = true
		s.hasOpen = false
	}
}
