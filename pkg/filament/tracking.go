package filament

import (
	"sync"

	"github.com/petermattis/goid"
)

// trackingContext holds the reactive state for one goroutine. Each
// goroutine has its own context so concurrent tracked runs never observe
// each other's active subscriber.
type trackingContext struct {
	// active is the subscriber currently collecting dependencies.
	// nil means reads do not create links.
	active *subscriberNode

	// suspendDepth counts nested Untracked regions. Reads create no
	// links while it is positive. A counter, not a bool, so an inner
	// suspend cannot prematurely re-enable tracking for an outer one.
	suspendDepth int

	// scope is the Scope that adopts newly created subscribers.
	scope *Scope
}

// trackingContexts maps goroutine ID to its context.
var trackingContexts sync.Map

// currentContext returns the tracking context for the calling goroutine,
// creating one on first use.
func currentContext() *trackingContext {
	gid := goid.Get()
	if tc, ok := trackingContexts.Load(gid); ok {
		return tc.(*trackingContext)
	}
	tc := &trackingContext{}
	trackingContexts.Store(gid, tc)
	return tc
}

// peekContext returns the calling goroutine's context without creating
// one. Read-only paths use this so a bare signal read on a fresh
// goroutine leaves no registry entry behind.
func peekContext() *trackingContext {
	if tc, ok := trackingContexts.Load(goid.Get()); ok {
		return tc.(*trackingContext)
	}
	return nil
}

// releaseContext drops the goroutine's registry entry once the context is
// back to its zero state. Drain goroutines are short-lived, so an entry
// kept past the tracked run would leak one map slot per flush.
func releaseContext(tc *trackingContext) {
	if tc.active == nil && tc.suspendDepth == 0 && tc.scope == nil {
		trackingContexts.Delete(goid.Get())
	}
}

// Track records that the active subscriber reads src. It is a no-op when
// tracking is suspended or no subscriber is active. The duplicate check is
// O(1): each subscriber remembers the run version at which it last linked
// each source.
func Track(src *Source, op OpKind) {
	tc := peekContext()
	if tc == nil || tc.suspendDepth > 0 || tc.active == nil {
		return
	}
	sub := tc.active

	graphMu.Lock()
	src.ensureID()
	if sub.seen == nil {
		sub.seen = make(map[uint64]uint64)
	}
	if sub.seen[src.id] == sub.version {
		graphMu.Unlock()
		return // already linked this run
	}
	attach(sub, src)
	sub.seen[src.id] = sub.version
	srcID, subID := src.id, sub.id
	graphMu.Unlock()

	if Debug.LogTracking {
		Warnf("track: source %d -> subscriber %d (%s)", srcID, subID, op)
	}
	ev := TrackEvent{SourceID: srcID, SubscriberID: subID, Op: op}
	fireTrack(ev)
	if DevMode && sub.onTrack != nil {
		sub.onTrack(ev)
	}
}

// Trigger notifies every subscriber of src that it changed. Subscriber
// identities are snapshotted before any schedule call: scheduling may
// synchronously re-run an effect and rewrite this very list. Subscribers
// disposed after the snapshot are skipped.
func Trigger(src *Source, op OpKind, info any) {
	graphMu.Lock()
	src.ensureID()
	subs := snapshotSubscribers(src)
	srcID := src.id
	graphMu.Unlock()

	fireTrigger(TriggerEvent{SourceID: srcID, Op: op, Subscribers: len(subs), Info: info})

	for _, s := range subs {
		if s.isDisposed() {
			continue
		}
		s.schedule(src, op, info)
	}
}

// runTracked drives one tracked run of fn on behalf of sub:
// bump the version, tear down the previous run's links, install sub as the
// active subscriber, execute, and always restore the prior subscriber,
// even when fn panics. Links for sources not re-read this run are gone by
// the time the run starts.
func runTracked(sub *subscriberNode, fn func() error) error {
	sub.version++

	graphMu.Lock()
	clearSubscriberDeps(sub)
	graphMu.Unlock()

	tc := currentContext()
	prev := tc.active
	tc.active = sub
	defer func() {
		tc.active = prev
		releaseContext(tc)
	}()

	return fn()
}

// Untracked runs fn with dependency tracking suspended. Nested calls
// compose; the prior depth is restored even when fn panics.
func Untracked(fn func()) {
	tc := currentContext()
	tc.suspendDepth++
	defer func() {
		tc.suspendDepth--
		releaseContext(tc)
	}()
	fn()
}

// UntrackedGet reads a signal's value without creating a dependency.
// Equivalent to s.Peek().
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}

// IsTracking reports whether a read at this point would create a link.
func IsTracking() bool {
	tc := peekContext()
	return tc != nil && tc.active != nil && tc.suspendDepth == 0
}
