package filament

import (
	"sync"
	"sync/atomic"
)

// graphMu guards all link-list mutation. The graph is one shared structure
// threaded through every source and subscriber, so a single lock is both
// simpler and cheaper than per-object locks that would have to be taken in
// pairs. User code never runs while it is held.
var graphMu sync.Mutex

// liveLinks counts links currently in the graph, for telemetry.
var liveLinks atomic.Int64

// LiveLinks reports the number of dependency links currently alive.
func LiveLinks() int64 {
	return liveLinks.Load()
}

// Source is the signal side of the dependency graph. Every signal kind
// embeds one; external signal implementations may embed it too and call
// Track/Trigger on reads and writes.
//
// The zero value is usable: an ID is assigned on first track or trigger.
// Fields are private to the engine; external code must not touch them.
type Source struct {
	id uint64

	// subsHead..subsTail is the doubly-linked list of subscribers that
	// currently read this source, in link-insertion order.
	subsHead *link
	subsTail *link
}

// NewSource returns a Source with its identity pre-assigned. Embedders
// that compare or log sources before the first read may prefer this over
// the zero value.
func NewSource() Source {
	return Source{id: nextID()}
}

// ID returns the source's unique identity, assigning one if needed.
func (s *Source) ID() uint64 {
	graphMu.Lock()
	defer graphMu.Unlock()
	s.ensureID()
	return s.id
}

// ensureID assigns an identity on first use. Caller holds graphMu.
func (s *Source) ensureID() {
	if s.id == 0 {
		s.id = nextID()
	}
}

// subscriberNode is the effect side of the graph, embedded by Subscriber
// and Memo. It owns the list of sources read during the current run and a
// version counter bumped once per tracked run.
type subscriberNode struct {
	id uint64

	// owner receives schedule calls when any dependency triggers.
	owner schedulable

	// depsHead..depsTail is the doubly-linked list of sources this
	// subscriber read during its latest run, in read order.
	depsHead *link
	depsTail *link

	// version counts tracked runs. A source is linked at most once per
	// version; seen records the version at which each source was last
	// linked so the duplicate check is O(1) without scanning.
	version uint64
	seen    map[uint64]uint64

	// onTrack fires when this subscriber links a source (DevMode only).
	onTrack func(TrackEvent)
}

// schedulable is what a source invokes when it changes.
type schedulable interface {
	// schedule notifies the subscriber that src changed. It must be safe
	// to call while no locks are held and may run the subscriber
	// synchronously.
	schedule(src *Source, op OpKind, info any)

	// isDisposed reports whether the subscriber has been disposed and
	// should be skipped during trigger passes.
	isDisposed() bool
}

// link is the join record between exactly one source and one subscriber.
// It is threaded into two independent doubly-linked lists at once: the
// subscriber's dependency list (prevDep/nextDep) and the source's
// subscriber list (prevSub/nextSub).
type link struct {
	src *Source
	sub *subscriberNode

	prevDep *link
	nextDep *link

	prevSub *link
	nextSub *link
}

// attach creates a link and appends it to the tail of both lists.
// O(1) via the stored tail pointers. Duplicate suppression is the caller's
// job (see Track). Caller holds graphMu.
func attach(sub *subscriberNode, src *Source) *link {
	l := &link{src: src, sub: sub}

	if sub.depsTail == nil {
		sub.depsHead = l
	} else {
		sub.depsTail.nextDep = l
		l.prevDep = sub.depsTail
	}
	sub.depsTail = l

	if src.subsTail == nil {
		src.subsHead = l
	} else {
		src.subsTail.nextSub = l
		l.prevSub = src.subsTail
	}
	src.subsTail = l

	liveLinks.Add(1)
	return l
}

// detach splices the link out of both lists in O(1) and clears every
// pointer on the link itself so accidental reuse fails fast.
// Caller holds graphMu.
func detach(l *link) {
	if l.src == nil && l.sub == nil {
		return // already detached
	}

	if l.prevDep != nil {
		l.prevDep.nextDep = l.nextDep
	} else {
		l.sub.depsHead = l.nextDep
	}
	if l.nextDep != nil {
		l.nextDep.prevDep = l.prevDep
	} else {
		l.sub.depsTail = l.prevDep
	}

	if l.prevSub != nil {
		l.prevSub.nextSub = l.nextSub
	} else {
		l.src.subsHead = l.nextSub
	}
	if l.nextSub != nil {
		l.nextSub.prevSub = l.prevSub
	} else {
		l.src.subsTail = l.prevSub
	}

	l.prevDep, l.nextDep = nil, nil
	l.prevSub, l.nextSub = nil, nil
	l.src, l.sub = nil, nil

	liveLinks.Add(-1)
}

// clearSubscriberDeps destroys every link owned by the subscriber.
// Safe on a subscriber with no links; calling it twice is a no-op.
// Caller holds graphMu.
func clearSubscriberDeps(sub *subscriberNode) {
	for l := sub.depsHead; l != nil; {
		next := l.nextDep
		detach(l)
		l = next
	}
	sub.depsHead, sub.depsTail = nil, nil
}

// clearSourceSubs destroys every link owned by the source. Used when a
// source itself goes away, such as a per-key signal whose key was deleted.
// Caller holds graphMu.
func clearSourceSubs(src *Source) {
	for l := src.subsHead; l != nil; {
		next := l.nextSub
		detach(l)
		l = next
	}
	src.subsHead, src.subsTail = nil, nil
}

// snapshotSubscribers copies the identities of the source's subscribers,
// head first. Trigger passes iterate the snapshot, never the live list,
// because scheduling may synchronously mutate the graph.
// Caller holds graphMu.
func snapshotSubscribers(src *Source) []schedulable {
	var subs []schedulable
	for l := src.subsHead; l != nil; l = l.nextSub {
		subs = append(subs, l.sub.owner)
	}
	return subs
}

// eachDepSource walks the subscriber's dependency list under the graph
// lock and yields each source. The walk snapshots first, so yielding may
// safely mutate the graph.
func eachDepSource(sub *subscriberNode, yield func(*Source) bool) {
	graphMu.Lock()
	var srcs []*Source
	for l := sub.depsHead; l != nil; l = l.nextDep {
		srcs = append(srcs, l.src)
	}
	graphMu.Unlock()

	for _, s := range srcs {
		if !yield(s) {
			return
		}
	}
}
