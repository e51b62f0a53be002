package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// JSONLines appends one JSON object per record.
type JSONLines struct {
	w *bufio.Writer
	c io.Closer
}

// NewJSONLines writes to w. If w is an io.Closer, Close closes it.
func NewJSONLines(w io.Writer) *JSONLines {
	bw := bufio.NewWriter(w)
	j := &JSONLines{w: bw}
	if c, ok := w.(io.Closer); ok {
		j.c = c
	}
	return j
}

// OpenJSONLines appends to the file at path, creating it if needed.
func OpenJSONLines(path string) (*JSONLines, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return NewJSONLines(f), nil
}

// Write encodes r followed by a newline.
func (j *JSONLines) Write(r Record) error {
	line, err := sonnet.Marshal(r)
	if err != nil {
		return fmt.Errorf("sink: encode: %w", err)
	}
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	return nil
}

// Flush pushes buffered records to the underlying writer.
func (j *JSONLines) Flush() error {
	return j.w.Flush()
}

// Close flushes and closes the underlying writer.
func (j *JSONLines) Close() error {
	err := j.w.Flush()
	if j.c != nil {
		if cerr := j.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
