package stream

// NormalizeBoundaries brackets every text and reasoning delta run with
// explicit start and end events.
//
// An event continuing the open run (same group, same id) passes through. Any
// other event first closes the open run with a synthesized end. A delta that
// does not continue the open run is preceded by a synthesized start. An end
// for a run that is not open is dropped, as is a start for a run that already
// is. Events outside a delta group pass through.
func NormalizeBoundaries(events []Event, last *Event) ([]Event, *Event) {
	out := make([]Event, 0, len(events)+2)
	cur := last

	emit := func(ev Event) {
		out = append(out, ev)
		cur = &ev
	}

	for _, ev := range events {
		group := ev.Group()
		open := isOpen(cur)

		if open && group != GroupNone && cur.Group() == group && cur.ID == ev.ID {
			if ev.Kind() == KindStart {
				continue
			}
			emit(ev)
			continue
		}

		if open {
			emit(EndOf(cur.Group(), cur.ID))
		}

		switch ev.Kind() {
		case KindDelta:
			emit(StartOf(group, ev.ID))
			emit(ev)
		case KindEnd:
			// never opened
		default:
			emit(ev)
		}
	}

	return out, cur
}

// isOpen reports whether last leaves a delta run unterminated.
func isOpen(last *Event) bool {
	if last == nil || last.Group() == GroupNone {
		return false
	}
	k := last.Kind()
	return k == KindStart || k == KindDelta
}
