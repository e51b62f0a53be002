package sink

import (
	"io"

	"dmasampler/debug"
	"dmasampler/utils"
)

// Text prints the bring-up console line:
//
//	I: 0000, S: 1000 Val 0: h05-01, Val 1: h05-02
type Text struct {
	w   io.Writer
	buf []byte
}

// NewText writes to w, or to the diagnostic output when w is nil.
func NewText(w io.Writer) *Text {
	return &Text{w: w, buf: make([]byte, 0, 64)}
}

// Write formats r. Not safe for concurrent use; the consumer loop is the
// only writer.
func (t *Text) Write(r Record) error {
	b := t.buf[:0]
	b = append(b, "I: "...)
	b = utils.AppendPadInt(b, int(r.Start), 4)
	b = append(b, ", S: "...)
	b = utils.AppendPadInt(b, int(r.Count), 4)
	b = append(b, " Val 0: h"...)
	b = append(b, r.Val0...)
	b = append(b, ", Val 1: h"...)
	b = append(b, r.Val1...)
	if r.Clamped {
		b = append(b, " CLAMPED"...)
	}
	t.buf = b

	if t.w == nil {
		debug.DropLine(b)
		return nil
	}
	_, err := t.w.Write(append(b, '\n'))
	return err
}

// Close is a no-op.
func (t *Text) Close() error { return nil }
