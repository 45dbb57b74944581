package filament

import (
	"reflect"
	"sync"
)

// Signal is a reactive scalar value container. Reading a Signal during a
// tracked run (an effect body, a watch source, or a memo computation)
// links the active subscriber to it; writing a changed value schedules
// every linked subscriber.
type Signal[T any] struct {
	src Source

	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal decides whether a write changed the value. nil means
	// defaultEquals.
	equal func(T, T) bool
}

// NewSignal creates a signal holding initial.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		src:   NewSource(),
		value: initial,
	}
}

// Get returns the current value and links the active subscriber.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track after releasing the value lock so a tracked read can never
	// deadlock against a concurrent write.
	Track(&s.src, OpGet)

	return value
}

// Peek returns the current value without linking anything.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and triggers dependents if it changed per the
// configured equality. Writing an equal value is a strict no-op.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	old := s.value
	changed := !s.equals(old, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		Trigger(&s.src, OpSet, &Change{Index: -1, Old: old, New: value})
	}
}

// Update atomically derives the next value from the current one.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	old := s.value
	next := fn(old)
	changed := !s.equals(old, next)
	if changed {
		s.value = next
	}
	s.mu.Unlock()

	if changed {
		Trigger(&s.src, OpSet, &Change{Index: -1, Old: old, New: next})
	}
}

// WithEquals configures a custom equality function and returns the signal
// for chaining. Useful where reflect.DeepEqual is too expensive or has the
// wrong semantics.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the signal's unique identity.
func (s *Signal[T]) ID() uint64 {
	return s.src.ID()
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals compares with == when the dynamic type allows it and falls
// back to reflect.DeepEqual for slices, maps, and structs containing them.
func defaultEquals[T any](a, b T) bool {
	av, bv := any(a), any(b)
	if av == nil || bv == nil {
		return av == nil && bv == nil
	}
	ta := reflect.TypeOf(av)
	if ta != reflect.TypeOf(bv) {
		return false
	}
	if ta.Comparable() {
		return av == bv
	}
	return reflect.DeepEqual(av, bv)
}

// anyEquals is defaultEquals for untyped values, used by the collection
// signals.
func anyEquals(a, b any) bool {
	return defaultEquals(a, b)
}
