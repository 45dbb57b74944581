package filament

import "sync"

// Ref is an untyped reactive value holder. It is the dynamic counterpart
// of Signal[T] for callers holding heterogeneous data, and the only
// scalar container with deep support: a deep Ref hands out reactive
// wrappers for map and slice values instead of the raw containers.
type Ref struct {
	src Source

	mu    sync.RWMutex
	value any

	// wrapper caches the deep wrapper for the current value.
	wrapper any

	deep  bool
	equal func(a, b any) bool
}

// RefOption configures a Ref.
type RefOption func(*Ref)

// DeepRef wraps container values in reactive containers on read.
func DeepRef() RefOption {
	return func(r *Ref) {
		r.deep = true
	}
}

// RefEquals overrides the write equality check.
func RefEquals(fn func(a, b any) bool) RefOption {
	return func(r *Ref) {
		r.equal = fn
	}
}

// NewRef creates a ref holding initial.
func NewRef(initial any, opts ...RefOption) *Ref {
	r := &Ref{
		src:   NewSource(),
		value: initial,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the current value and links the active subscriber. On a
// deep ref, a map[string]any or []any value comes back as a cached
// reactive wrapper so nested reads are tracked per key or index.
func (r *Ref) Get() any {
	r.mu.Lock()
	value := r.value
	if r.deep {
		value = r.wrapLocked(value)
	}
	r.mu.Unlock()

	Track(&r.src, OpGet)
	return value
}

// Peek returns the raw value without linking or wrapping.
func (r *Ref) Peek() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set replaces the value. Equal writes are a strict no-op; a changed
// write drops any cached deep wrapper and triggers dependents.
func (r *Ref) Set(value any) {
	r.mu.Lock()
	old := r.value
	if r.equals(old, value) {
		r.mu.Unlock()
		return
	}
	r.value = value
	r.wrapper = nil
	r.mu.Unlock()

	Trigger(&r.src, OpSet, &Change{Index: -1, Old: old, New: value})
}

// ID returns the ref's unique identity.
func (r *Ref) ID() uint64 {
	return r.src.ID()
}

func (r *Ref) equals(a, b any) bool {
	if r.equal != nil {
		return r.equal(a, b)
	}
	return anyEquals(a, b)
}

// wrapLocked returns the cached wrapper for value, creating one when the
// value is a wrappable container. Caller holds r.mu.
func (r *Ref) wrapLocked(value any) any {
	if r.wrapper != nil {
		return r.wrapper
	}
	switch v := value.(type) {
	case map[string]any:
		r.wrapper = NewReactiveMap(v, Deep())
	case []any:
		r.wrapper = NewReactiveSlice(v, DeepSlice())
	default:
		return value
	}
	return r.wrapper
}
