// ============================================================================
// BATCH DIAGNOSTIC RECORDS
// ============================================================================
//
// One Record per consumed batch: where the window sits, how many items it
// holds, the first two RX items and a SHA3-256 fingerprint of the window.
// Records describe batches; sample payloads are never persisted.

package sink

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"dmasampler/config"
	"dmasampler/pipeline"
	"dmasampler/utils"
)

// ErrKind is returned by New for an unknown sink kind.
var ErrKind = errors.New("sink: unknown kind")

// Record is the per-batch diagnostic line.
type Record struct {
	RunID       string `json:"run_id"`
	Seq         uint64 `json:"seq"`
	Branch      string `json:"branch"`
	Start       uint32 `json:"start"`
	Count       uint32 `json:"count"`
	Clamped     bool   `json:"clamped"`
	Val0        string `json:"val0"`
	Val1        string `json:"val1"`
	Fingerprint string `json:"sha3_256"`
	Coalesced   uint64 `json:"coalesced"`
}

// Sink receives records from the consumer loop.
type Sink interface {
	Write(r Record) error
	Close() error
}

// NewRecord summarizes b. coalesced is the running count of notifications
// overwritten before they were read.
func NewRecord(run uuid.UUID, b pipeline.Batch, coalesced uint64) Record {
	r := Record{
		RunID:     run.String(),
		Seq:       b.Seq,
		Branch:    b.Branch.String(),
		Start:     b.Descriptor.Start,
		Count:     b.Descriptor.Count,
		Clamped:   b.Descriptor.Clamped,
		Coalesced: coalesced,
	}
	if b.Window.Len() > 0 {
		r.Val0 = itemString(b.Window.Item(0))
	}
	if b.Window.Len() > 1 {
		r.Val1 = itemString(b.Window.Item(1))
	}
	sum := sha3.Sum256(b.Window.Bytes())
	r.Fingerprint = string(utils.AppendHex(make([]byte, 0, 2*len(sum)), sum[:]))
	return r
}

// itemString renders an item as dash-separated hex bytes: "05-01".
func itemString(item []byte) string {
	out := make([]byte, 0, len(item)*3)
	for i, c := range item {
		if i > 0 {
			out = append(out, '-')
		}
		out = utils.AppendHex2(out, c)
	}
	return string(out)
}

// New opens the sink selected by cfg.
func New(cfg config.Sink) (Sink, error) {
	switch cfg.Kind {
	case config.SinkText, "":
		return NewText(nil), nil
	case config.SinkJSONL:
		return OpenJSONLines(cfg.Path)
	case config.SinkSQLite:
		return OpenSQLite(cfg.Path)
	}
	return nil, fmt.Errorf("%w %q", ErrKind, cfg.Kind)
}

// Multi fans a record out to several sinks. Every sink sees every record;
// the first error is returned.
type Multi []Sink

// Write forwards r to each sink.
func (m Multi) Write(r Record) error {
	var first error
	for _, s := range m {
		if err := s.Write(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes each sink.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
