package cache

import "fmt"

// Assert panics with an invariant-violation message when cond is false.
// Invariant violations mean the policy state is corrupt; the simulation
// must not continue.
func Assert(cond bool, message string) {
	if !cond {
		panic("cache: invariant violated: " + message)
	}
}

// Assertf is Assert with a formatted message. Arguments are evaluated even
// when cond holds; Verify uses it, which runs per request only under Debug.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("cache: invariant violated: " + fmt.Sprintf(format, args...))
	}
}
