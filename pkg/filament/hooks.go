package filament

import (
	"sync"
	"time"
)

// TrackEvent describes one link being created.
type TrackEvent struct {
	SourceID     uint64
	SubscriberID uint64
	Op           OpKind
}

// TriggerEvent describes one trigger pass over a source's subscribers.
type TriggerEvent struct {
	SourceID    uint64
	Op          OpKind
	Subscribers int
	Info        any
}

// FlushEvent describes one completed scheduler drain.
type FlushEvent struct {
	Jobs     int
	Duration time.Duration
	When     time.Time
}

// EffectRunEvent describes one subscriber invocation.
type EffectRunEvent struct {
	SubscriberID uint64
	Duration     time.Duration
	When         time.Time
	Err          error
}

// hookRegistry holds process-wide observer callbacks. Handlers must be
// fast and must not call back into the engine while holding their own
// locks; they run on whichever goroutine produced the event.
type hookRegistry struct {
	mu          sync.RWMutex
	nextKey     uint64
	onTrack     map[uint64]func(TrackEvent)
	onTrigger   map[uint64]func(TriggerEvent)
	onFlush     map[uint64]func(FlushEvent)
	onEffectRun map[uint64]func(EffectRunEvent)
}

var hooks hookRegistry

func (h *hookRegistry) add(register func(key uint64)) func() {
	h.mu.Lock()
	h.nextKey++
	key := h.nextKey
	register(key)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.onTrack, key)
		delete(h.onTrigger, key)
		delete(h.onFlush, key)
		delete(h.onEffectRun, key)
		h.mu.Unlock()
	}
}

// HookOnTrack registers a process-wide observer of link creation.
// The returned function removes the hook.
func HookOnTrack(fn func(TrackEvent)) func() {
	return hooks.add(func(key uint64) {
		if hooks.onTrack == nil {
			hooks.onTrack = make(map[uint64]func(TrackEvent))
		}
		hooks.onTrack[key] = fn
	})
}

// HookOnTrigger registers a process-wide observer of trigger passes.
func HookOnTrigger(fn func(TriggerEvent)) func() {
	return hooks.add(func(key uint64) {
		if hooks.onTrigger == nil {
			hooks.onTrigger = make(map[uint64]func(TriggerEvent))
		}
		hooks.onTrigger[key] = fn
	})
}

// HookOnFlush registers a process-wide observer of scheduler drains.
func HookOnFlush(fn func(FlushEvent)) func() {
	return hooks.add(func(key uint64) {
		if hooks.onFlush == nil {
			hooks.onFlush = make(map[uint64]func(FlushEvent))
		}
		hooks.onFlush[key] = fn
	})
}

// HookOnEffectRun registers a process-wide observer of subscriber runs.
func HookOnEffectRun(fn func(EffectRunEvent)) func() {
	return hooks.add(func(key uint64) {
		if hooks.onEffectRun == nil {
			hooks.onEffectRun = make(map[uint64]func(EffectRunEvent))
		}
		hooks.onEffectRun[key] = fn
	})
}

func fireTrack(ev TrackEvent) {
	hooks.mu.RLock()
	for _, fn := range hooks.onTrack {
		fn(ev)
	}
	hooks.mu.RUnlock()
}

func fireTrigger(ev TriggerEvent) {
	hooks.mu.RLock()
	for _, fn := range hooks.onTrigger {
		fn(ev)
	}
	hooks.mu.RUnlock()
}

func fireFlush(ev FlushEvent) {
	hooks.mu.RLock()
	for _, fn := range hooks.onFlush {
		fn(ev)
	}
	hooks.mu.RUnlock()
}

func fireEffectRun(ev EffectRunEvent) {
	hooks.mu.RLock()
	for _, fn := range hooks.onEffectRun {
		fn(ev)
	}
	hooks.mu.RUnlock()
}
