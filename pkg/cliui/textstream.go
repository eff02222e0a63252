package cliui

import (
	"io"
	"strings"
	"sync"
)

// TextStream writes a growing text to w, printing only the part not yet
// shown. Safe for concurrent use.
type TextStream struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
}

func NewTextStream(w io.Writer) *TextStream {
	return &TextStream{w: w}
}

// Update prints the suffix of text beyond what was already printed. A text
// that does not extend the printed one is written on a fresh line in full.
func (t *TextStream) Update(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case text == t.printed:
		return
	case strings.HasPrefix(text, t.printed):
		_, _ = io.WriteString(t.w, text[len(t.printed):])
	default:
		_, _ = io.WriteString(t.w, "\n"+text)
	}
	t.printed = text
}

// Printed returns everything shown so far.
func (t *TextStream) Printed() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.printed
}

// Reset starts a new message.
func (t *TextStream) Reset() {
	t.mu.Lock()
	t.printed = ""
	t.mu.Unlock()
}
