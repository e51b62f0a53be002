package utils

import (
	"syscall"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities - Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

///////////////////////////////////////////////////////////////////////////////
// Decimal & Hex Formatting - Fixed Buffers, No fmt
///////////////////////////////////////////////////////////////////////////////

const hexDigits = "0123456789abcdef"

// Itoa renders a non-negative int in decimal. Negative values are prefixed
// with '-'. Only one allocation (the returned string).
func Itoa(n int) string {
	var buf [20]byte
	return string(appendInt(buf[:0], n, 0))
}

// Utoa renders a uint64 in decimal.
func Utoa(n uint64) string {
	var buf [20]byte
	i := len(buf)
	if n == 0 {
		return "0"
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// PadInt renders n in decimal, left-padded with zeros to at least width
// digits. PadInt(7, 4) == "0007".
func PadInt(n, width int) string {
	var buf [24]byte
	return string(appendInt(buf[:0], n, width))
}

// AppendPadInt is the append form of PadInt.
func AppendPadInt(dst []byte, n, width int) []byte {
	return appendInt(dst, n, width)
}

func appendInt(dst []byte, n, width int) []byte {
	if n < 0 {
		dst = append(dst, '-')
		n = -n
	}
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	for pad := width - (len(tmp) - i); pad > 0; pad-- {
		dst = append(dst, '0')
	}
	return append(dst, tmp[i:]...)
}

// Hex2 renders one byte as two lowercase hex digits.
//
//go:nosplit
func Hex2(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0f]})
}

// AppendHex2 appends one byte as two lowercase hex digits.
//
//go:nosplit
func AppendHex2(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0f])
}

// AppendHex appends every byte of b as lowercase hex with no separator.
func AppendHex(dst []byte, b []byte) []byte {
	for _, c := range b {
		dst = append(dst, hexDigits[c>>4], hexDigits[c&0x0f])
	}
	return dst
}

///////////////////////////////////////////////////////////////////////////////
// Raw Output - Direct fd Writes
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes msg straight to stderr (fd 2), bypassing os.File and
// any buffering. Errors are dropped; there is nowhere left to report them.
//
//go:nosplit
func PrintWarning(msg string) {
	if len(msg) == 0 {
		return
	}
	_, _ = syscall.Write(2, unsafe.Slice(unsafe.StringData(msg), len(msg)))
}

// PrintInfo writes msg straight to stdout (fd 1).
//
//go:nosplit
func PrintInfo(msg string) {
	if len(msg) == 0 {
		return
	}
	_, _ = syscall.Write(1, unsafe.Slice(unsafe.StringData(msg), len(msg)))
}

///////////////////////////////////////////////////////////////////////////////
// Bit Helpers
///////////////////////////////////////////////////////////////////////////////

// IsPow2 reports whether n is a positive power of two.
//
//go:nosplit
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
