package filament

import "sync/atomic"

// idCounter is the source of unique IDs for all reactive primitives.
var idCounter atomic.Uint64

// nextID returns a process-unique, monotonically increasing identifier.
// IDs are never reused; zero is reserved for "not yet assigned".
func nextID() uint64 {
	return idCounter.Add(1)
}
