package filament

import "sync"

// ReactiveSlice observes a slice of untyped values at per-index
// granularity, with a dedicated length source and a structural source.
// Reading an index links only that index; reading Len links the length
// source; iteration links the structural source.
type ReactiveSlice struct {
	mu sync.Mutex

	values []any

	// indexSources holds lazily created per-index sources.
	indexSources map[int]*Source

	// wrappers caches deep wrappers per index.
	wrappers map[int]any

	length     Source
	structural Source

	deep bool
}

// SliceOption configures a ReactiveSlice.
type SliceOption func(*ReactiveSlice)

// DeepSlice recursively wraps nested maps and slices read from this slice.
func DeepSlice() SliceOption {
	return func(s *ReactiveSlice) {
		s.deep = true
	}
}

// NewReactiveSlice wraps a copy of initial in a reactive container.
func NewReactiveSlice(initial []any, opts ...SliceOption) *ReactiveSlice {
	values := make([]any, len(initial))
	copy(values, initial)
	s := &ReactiveSlice{
		values:       values,
		indexSources: make(map[int]*Source),
		length:       NewSource(),
		structural:   NewSource(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// indexSource returns the source for index i, creating it lazily.
// Caller holds s.mu.
func (s *ReactiveSlice) indexSource(i int) *Source {
	src, ok := s.indexSources[i]
	if !ok {
		n := NewSource()
		src = &n
		s.indexSources[i] = src
	}
	return src
}

// Get returns the element at i, linking that index's source. Out-of-range
// reads link too (the index may come into existence later) and return nil.
func (s *ReactiveSlice) Get(i int) any {
	if i < 0 {
		return nil
	}

	s.mu.Lock()
	src := s.indexSource(i)
	var value any
	if i < len(s.values) {
		value = s.values[i]
		if s.deep {
			value = s.wrapLocked(i, value)
		}
	}
	s.mu.Unlock()

	Track(src, OpGet)
	return value
}

// Peek returns the element at i without linking.
func (s *ReactiveSlice) Peek(i int) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.values) {
		return nil
	}
	return s.values[i]
}

// Set replaces the element at i. Equal values are a no-op; writes past the
// current length grow the slice and fire the length source as well.
func (s *ReactiveSlice) Set(i int, value any) {
	if i < 0 {
		Warnf("reactive slice: negative index %d ignored", i)
		return
	}

	s.mu.Lock()
	grew := false
	var old any
	if i < len(s.values) {
		old = s.values[i]
		if anyEquals(old, value) {
			s.mu.Unlock()
			return
		}
		s.values[i] = value
	} else {
		for len(s.values) <= i {
			s.values = append(s.values, nil)
		}
		s.values[i] = value
		grew = true
	}
	delete(s.wrappers, i)
	src := s.indexSource(i)
	newLen := len(s.values)
	s.mu.Unlock()

	op := OpSet
	if grew {
		op = OpAdd
	}
	Trigger(src, op, &Change{Index: i, Old: old, New: value})
	if grew {
		Trigger(&s.length, OpLength, &Change{Index: -1, New: newLen})
		Trigger(&s.structural, OpStructure, &Change{Index: i, New: value})
	}
}

// Append adds value at the end, firing the new index, the length source,
// and the structural source.
func (s *ReactiveSlice) Append(value any) {
	s.mu.Lock()
	i := len(s.values)
	s.values = append(s.values, value)
	src := s.indexSource(i)
	newLen := len(s.values)
	s.mu.Unlock()

	Trigger(src, OpAdd, &Change{Index: i, New: value})
	Trigger(&s.length, OpLength, &Change{Index: -1, New: newLen})
	Trigger(&s.structural, OpStructure, &Change{Index: i, New: value})
}

// Len returns the current length, linking the length source.
func (s *ReactiveSlice) Len() int {
	s.mu.Lock()
	n := len(s.values)
	s.mu.Unlock()

	Track(&s.length, OpGet)
	return n
}

// Snapshot returns a copy of the raw values, linking the structural
// source.
func (s *ReactiveSlice) Snapshot() []any {
	s.mu.Lock()
	out := make([]any, len(s.values))
	copy(out, s.values)
	s.mu.Unlock()

	Track(&s.structural, OpGet)
	return out
}

// SetLen resizes the slice. Shrinking invalidates every index source at
// or beyond the new length — a final delete notification followed by link
// destruction — before the stored length changes; then the length source
// fires, and the structural source fires separately.
func (s *ReactiveSlice) SetLen(n int) {
	if n < 0 {
		n = 0
	}

	s.mu.Lock()
	oldLen := len(s.values)
	if n == oldLen {
		s.mu.Unlock()
		return
	}

	type dropped struct {
		index int
		src   *Source
		old   any
	}
	var drops []dropped
	if n < oldLen {
		for i := n; i < oldLen; i++ {
			if src, ok := s.indexSources[i]; ok {
				drops = append(drops, dropped{index: i, src: src, old: s.values[i]})
				delete(s.indexSources, i)
			}
			delete(s.wrappers, i)
		}
	}
	s.mu.Unlock()

	// Dropped indices are notified and unlinked before the length is
	// updated, so their subscribers observe the pre-shrink state.
	for _, d := range drops {
		Trigger(d.src, OpDelete, &Change{Index: d.index, Old: d.old})
		graphMu.Lock()
		clearSourceSubs(d.src)
		graphMu.Unlock()
	}

	s.mu.Lock()
	if n < len(s.values) {
		s.values = s.values[:n]
	} else {
		for len(s.values) < n {
			s.values = append(s.values, nil)
		}
	}
	s.mu.Unlock()

	Trigger(&s.length, OpLength, &Change{Index: -1, Old: oldLen, New: n})
	Trigger(&s.structural, OpStructure, &Change{Index: -1, Old: oldLen, New: n})
}

// wrapLocked returns the cached deep wrapper for index i's value.
// Caller holds s.mu.
func (s *ReactiveSlice) wrapLocked(i int, value any) any {
	if w, ok := s.wrappers[i]; ok {
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
	if s.wrappers == nil {
		s.wrappers = make(map[int]any)
	}
	s.wrappers[i] = wrapped
	return wrapped
}
