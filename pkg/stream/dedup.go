package stream

// Deduper guards one output stream: once a (group, id) run has ended, every
// later start, delta or end for it is dropped. Flush closes a run left open
// at the end of the stream.
type Deduper struct {
	ended map[groupKey]struct{}
	last  *Event
}

func NewDeduper() *Deduper {
	return &Deduper{ended: make(map[groupKey]struct{})}
}

// Push returns ev and true if it should be forwarded.
func (d *Deduper) Push(ev Event) (Event, bool) {
	if ev.Group() != GroupNone {
		key := keyOf(ev)
		if _, done := d.ended[key]; done {
			return Event{}, false
		}
		if ev.Kind() == KindEnd {
			d.ended[key] = struct{}{}
		}
	}
	d.last = &ev
	return ev, true
}

// Flush returns the closing end event when the last forwarded event leaves a
// run open.
func (d *Deduper) Flush() (Event, bool) {
	if !isOpen(d.last) {
		return Event{}, false
	}
	end := EndOf(d.last.Group(), d.last.ID)
	d.ended[keyOf(end)] = struct{}{}
	d.last = &end
	return end, true
}

// Last returns the most recently forwarded event, or nil.
func (d *Deduper) Last() *Event {
	return d.last
}
