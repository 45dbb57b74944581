package filament

import (
	"sync"
	"sync/atomic"
)

// Memo is a lazily recomputed derived value. It is both a subscriber (it
// tracks the sources its getter reads) and a source (effects that read it
// depend on it).
//
// Memos are lazy: the getter only runs when Get finds the cached value
// stale. An upstream change never recomputes eagerly; it flips the dirty
// flag and propagates downstream exactly once per clean-to-dirty
// transition, so repeated upstream writes while already dirty are no-ops.
type Memo[T any] struct {
	src  Source
	node subscriberNode

	// getter computes the value; setter, when present, handles writes.
	getter func() T
	setter func(T)

	// value is the cached result, valid while dirty is false.
	value   T
	valueMu sync.RWMutex

	// dirty marks the cache stale. Starts true so the first Get computes.
	dirty atomic.Bool

	// computing breaks recomputation cycles.
	computing atomic.Bool

	disposed atomic.Bool
}

// NewMemo creates a memo over getter. The getter is not run until the
// first Get.
func NewMemo[T any](getter func() T) *Memo[T] {
	m := &Memo[T]{
		src:    NewSource(),
		getter: getter,
	}
	m.node.id = nextID()
	m.node.owner = m
	m.dirty.Store(true)
	return m
}

// WithSetter configures a write handler so Set can be used, and returns
// the memo for chaining.
func (m *Memo[T]) WithSetter(fn func(T)) *Memo[T] {
	m.setter = fn
	return m
}

// Get returns the memo's value, recomputing if stale, then links the
// active subscriber to the memo itself.
func (m *Memo[T]) Get() T {
	if m.dirty.Load() {
		m.recompute()
	}

	Track(&m.src, OpGet)

	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// Peek returns the value without linking, still recomputing if stale.
func (m *Memo[T]) Peek() T {
	if m.dirty.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	return m.value
}

// Set routes a write through the configured setter. Without a setter the
// write is a warning and a no-op: a memo's cache is never assignable.
func (m *Memo[T]) Set(value T) {
	if m.setter == nil {
		Warnf("memo %d has no setter; write dropped", m.node.id)
		return
	}
	m.setter(value)
}

// Dirty reports whether the cached value is stale.
func (m *Memo[T]) Dirty() bool {
	return m.dirty.Load()
}

// ID returns the memo's source identity.
func (m *Memo[T]) ID() uint64 {
	return m.src.ID()
}

// Dispose detaches the memo from the graph in both directions: the
// sources its getter read, and the subscribers reading it. Idempotent.
func (m *Memo[T]) Dispose() {
	if m.disposed.Swap(true) {
		return
	}
	graphMu.Lock()
	clearSubscriberDeps(&m.node)
	clearSourceSubs(&m.src)
	m.node.seen = nil
	graphMu.Unlock()
}

// recompute runs the getter as a tracked run with the memo itself as the
// active subscriber, so upstream sources link to it.
func (m *Memo[T]) recompute() {
	if m.computing.Swap(true) {
		return // circular dependency; keep the current cache
	}
	defer m.computing.Store(false)

	// Clear dirty before running: a write performed by the getter itself
	// must be able to re-mark the memo stale. A panicking getter leaves
	// the memo dirty so the next read retries.
	m.dirty.Store(false)
	completed := false
	defer func() {
		if !completed {
			m.dirty.Store(true)
		}
	}()

	_ = runTracked(&m.node, func() error {
		value := m.getter()
		m.valueMu.Lock()
		m.value = value
		m.valueMu.Unlock()
		return nil
	})
	completed = true
}

// schedule is invoked by upstream sources. It only marks the cache stale;
// recomputation waits for the next read.
func (m *Memo[T]) schedule(src *Source, op OpKind, info any) {
	if m.disposed.Load() {
		return
	}
	if m.dirty.CompareAndSwap(false, true) {
		Trigger(&m.src, OpDirty, nil)
	}
}

func (m *Memo[T]) isDisposed() bool {
	return m.disposed.Load()
}
