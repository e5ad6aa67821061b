//go:build !cachesim_debug

package cache

// Debug makes Cache.Get run Verify after every request.
// Build with -tags cachesim_debug to turn it on.
const Debug = false
