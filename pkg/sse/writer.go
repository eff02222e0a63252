package sse

import (
	"bytes"
	"io"
)

// Frame encodes data as a single SSE event made of "data:" lines. Embedded
// newlines become separate data lines so the payload survives Reader's join.
func Frame(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) + 8)
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// DoneFrame returns the framed [DONE] sentinel.
func DoneFrame() []byte {
	return Frame([]byte(DoneData))
}

// WriteData frames data and writes it to w.
func WriteData(w io.Writer, data []byte) error {
	_, err := w.Write(Frame(data))
	return err
}
