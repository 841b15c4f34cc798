//go:build !keywardendebug

package core

// assertf is a no-op in release builds. Precondition violations fail
// soft: the calling operation reports an error or does nothing instead
// of corrupting data.
func assertf(cond bool, format string, args ...any) {}
