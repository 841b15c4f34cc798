//go:build keywardendebug

package core

import "fmt"

// assertf panics on violated preconditions in debug builds.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
