// Package replay hides replay restarts from the renderer.
//
// The resume endpoint replays a stream from its first chunk, so a client
// that reattaches rebuilds the assistant message from nothing. Deduper keeps
// the rendered content monotonic: until the rebuilt message grows past what
// was already shown, the renderer keeps seeing the previous high-water mark.
package replay

import (
	"unicode/utf8"

	"github.com/papercomputeco/relay/pkg/message"
)

// Deduper tracks the longest content rendered for the current message. It
// is not safe for concurrent use.
type Deduper struct {
	max  int
	last message.Message
	seen map[string]struct{}
}

// New returns an empty Deduper.
func New() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Apply returns the message to render in place of msg.
func (d *Deduper) Apply(msg message.Message) message.Message {
	n := msg.ContentLength()
	switch {
	case n > d.max:
		d.max = n
		d.last = msg.Clone()
		return msg
	case n == d.max:
		d.last = msg.Clone()
		return msg
	default:
		return Truncate(d.last, d.max)
	}
}

// Max returns the high-water mark.
func (d *Deduper) Max() int { return d.max }

// SeenData reports whether a data part with id was already delivered and
// records it otherwise. Empty ids are never deduplicated.
func (d *Deduper) SeenData(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

// Reset forgets everything, for a new message.
func (d *Deduper) Reset() {
	d.max = 0
	d.last = message.Message{}
	clear(d.seen)
}

// Truncate walks msg's parts and cuts text and reasoning so the cumulative
// length is at most limit characters. Other parts are kept verbatim, and
// text parts past the limit are dropped.
func Truncate(msg message.Message, limit int) message.Message {
	out := message.Message{ID: msg.ID, Role: msg.Role}
	remaining := limit
	for _, p := range msg.Parts {
		if !p.IsText() {
			out.Parts = append(out.Parts, p)
			continue
		}
		if remaining <= 0 {
			continue
		}
		if n := utf8.RuneCountInString(p.Text); n > remaining {
			p.Text = truncateRunes(p.Text, remaining)
			remaining = 0
		} else {
			remaining -= n
		}
		out.Parts = append(out.Parts, p)
	}
	return out
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
