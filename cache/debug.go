//go:build cachesim_debug

package cache

// Debug makes Cache.Get run Verify after every request.
const Debug = true
