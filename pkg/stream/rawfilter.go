package stream

// FilterRaw returns a Transformer that drops raw events unless keep reports
// true for them. A nil keep drops every raw event.
func FilterRaw(keep func(Event) bool) Transformer {
	return func(events []Event, last *Event) ([]Event, *Event) {
		out := make([]Event, 0, len(events))
		for _, ev := range events {
			if ev.Type == TypeRaw && (keep == nil || !keep(ev)) {
				continue
			}
			out = append(out, ev)
		}
		if len(out) == 0 {
			return out, last
		}
		return out, &out[len(out)-1]
	}
}
