// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go: ISR-aligned diagnostic logging helper
//
// Purpose:
//   - Logs bring-up, stall and error paths without pulling in fmt or log.
//   - Backs the text batch sink so per-batch lines share one output path.
//
// Notes:
//   - Writes go straight to fd 2 via utils.PrintWarning.
//   - Output can be redirected for tests with SetOutput.
//
// ⚠️ Never invoke from the interrupt handler; consumer loop and main only.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"sync/atomic"

	"dmasampler/utils"
)

// output is the active line writer. nil means utils.PrintWarning.
var output atomic.Pointer[func(string)]

// SetOutput redirects all diagnostic lines to fn. Passing nil restores the
// direct stderr writer. Returns the previous writer so callers can restore it.
func SetOutput(fn func(string)) func(string) {
	var prev *func(string)
	if fn == nil {
		prev = output.Swap(nil)
	} else {
		prev = output.Swap(&fn)
	}
	if prev == nil {
		return nil
	}
	return *prev
}

func emit(msg string) {
	if fn := output.Load(); fn != nil {
		(*fn)(msg)
		return
	}
	utils.PrintWarning(msg)
}

// DropError logs error messages with a plain concatenation strategy.
//
// Behavior:
//   - If `err != nil`, prints:   "<prefix>: <error>"
//   - If `err == nil`, prints:   "<prefix>" (used as a cheap trace tag)
//
//go:nosplit
func DropError(prefix string, err error) {
	if err != nil {
		emit(prefix + ": " + err.Error() + "\n")
		return
	}
	emit(prefix + "\n")
}

// DropMessage logs "<prefix>: <message>" on one line.
// Used for bring-up banners, stall reports and per-batch diagnostics.
//
//go:nosplit
func DropMessage(prefix, message string) {
	emit(prefix + ": " + message + "\n")
}

// DropLine logs a preformatted line as-is, appending the newline. A
// redirected writer gets its own copy; callers may reuse line afterwards.
func DropLine(line []byte) {
	if fn := output.Load(); fn != nil {
		(*fn)(string(append(line, '\n')))
		return
	}
	utils.PrintWarning(utils.B2s(append(line, '\n')))
}
