//go:build !linux

package pipeline

// setAffinity is a no-op where thread affinity is unavailable.
func setAffinity(int) error { return nil }
