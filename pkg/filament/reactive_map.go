package filament

import "sync"

// ReactiveMap observes a string-keyed map at per-key granularity. Each
// accessed key lazily gets its own source, so an effect reading one key
// re-runs only when that key changes. Structural operations (key count,
// key listing, existence checks across the map) depend on a separate
// structural source.
//
// With Deep, nested map[string]any and []any values are wrapped in
// reactive containers on read; wrappers are cached per key and dropped
// when the key is overwritten or deleted.
type ReactiveMap struct {
	mu sync.Mutex

	values map[string]any

	// keySources holds the lazily created per-key sources.
	keySources map[string]*Source

	// wrappers caches deep wrappers keyed by the key they came from.
	wrappers map[string]any

	// structural covers key add/remove and whole-map reads.
	structural Source

	deep bool
}

// MapOption configures a ReactiveMap.
type MapOption func(*ReactiveMap)

// Deep recursively wraps nested maps and slices read from this map.
func Deep() MapOption {
	return func(m *ReactiveMap) {
		m.deep = true
	}
}

// NewReactiveMap wraps initial (which may be nil) in a reactive container.
// The map is copied; later mutations of the original are invisible.
func NewReactiveMap(initial map[string]any, opts ...MapOption) *ReactiveMap {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	m := &ReactiveMap{
		values:     values,
		keySources: make(map[string]*Source),
		structural: NewSource(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// keySource returns the source for key, creating it on first access.
// Caller holds m.mu.
func (m *ReactiveMap) keySource(key string) *Source {
	src, ok := m.keySources[key]
	if !ok {
		s := NewSource()
		src = &s
		m.keySources[key] = src
	}
	return src
}

// Get returns the value for key, linking the active subscriber to the
// key's own source. With Deep, nested containers come back wrapped.
func (m *ReactiveMap) Get(key string) any {
	m.mu.Lock()
	src := m.keySource(key)
	value, ok := m.values[key]
	if ok && m.deep {
		value = m.wrapLocked(key, value)
	}
	m.mu.Unlock()

	Track(src, OpGet)
	return value
}

// Has reports whether key exists, linking the key's source.
func (m *ReactiveMap) Has(key string) bool {
	m.mu.Lock()
	src := m.keySource(key)
	_, ok := m.values[key]
	m.mu.Unlock()

	Track(src, OpGet)
	return ok
}

// Peek returns the raw value for key without linking or wrapping.
func (m *ReactiveMap) Peek(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key. An unchanged value is a no-op. A changed
// value triggers the key's source with the old and new values; a brand
// new key additionally triggers the structural source.
func (m *ReactiveMap) Set(key string, value any) {
	m.mu.Lock()
	old, existed := m.values[key]
	if existed && anyEquals(old, value) {
		m.mu.Unlock()
		return
	}
	m.values[key] = value
	delete(m.wrappers, key) // the cached wrapper no longer matches
	src := m.keySource(key)
	m.mu.Unlock()

	op := OpSet
	if !existed {
		op = OpAdd
	}
	Trigger(src, op, &Change{Key: key, Index: -1, Old: old, New: value})
	if !existed {
		Trigger(&m.structural, OpStructure, &Change{Key: key, Index: -1, New: value})
	}
}

// Delete removes key. The key's source fires one final delete
// notification, then every link on it is destroyed: the key no longer
// exists, so nothing should stay subscribed to it. Finally the structural
// source fires.
func (m *ReactiveMap) Delete(key string) {
	m.mu.Lock()
	old, existed := m.values[key]
	if !existed {
		m.mu.Unlock()
		return
	}
	delete(m.values, key)
	delete(m.wrappers, key)
	src := m.keySources[key]
	delete(m.keySources, key)
	m.mu.Unlock()

	if src != nil {
		Trigger(src, OpDelete, &Change{Key: key, Index: -1, Old: old})
		graphMu.Lock()
		clearSourceSubs(src)
		graphMu.Unlock()
	}
	Trigger(&m.structural, OpStructure, &Change{Key: key, Index: -1, Old: old})
}

// Len returns the key count, linking the structural source.
func (m *ReactiveMap) Len() int {
	m.mu.Lock()
	n := len(m.values)
	m.mu.Unlock()

	Track(&m.structural, OpGet)
	return n
}

// Keys returns a snapshot of the keys, linking the structural source.
// Order is unspecified.
func (m *ReactiveMap) Keys() []string {
	m.mu.Lock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	Track(&m.structural, OpGet)
	return keys
}

// Snapshot returns a shallow copy of the raw values, linking the
// structural source.
func (m *ReactiveMap) Snapshot() map[string]any {
	m.mu.Lock()
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	m.mu.Unlock()

	Track(&m.structural, OpGet)
	return out
}

// wrapLocked returns the cached deep wrapper for key's value, creating
// one if the value is a wrappable container. Caller holds m.mu.
func (m *ReactiveMap) wrapLocked(key string, value any) any {
	if w, ok := m.wrappers[key]; ok {
		return w
	}
	var wrapped any
	switch v := value.(type) {
	case map[string]any:
		wrapped = NewReactiveMap(v, Deep())
	case []any:
		wrapped = NewReactiveSlice(v, DeepSlice())
	default:
		return value
	}
	if m.wrappers == nil {
		m.wrappers = make(map[string]any)
	}
	m.wrappers[key] = wrapped
	return wrapped
}
