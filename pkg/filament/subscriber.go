package filament

import (
	"sync"
	"sync/atomic"
	"time"
)

// FlushMode selects how a subscriber's callback invocation is routed when
// the subscriber is triggered.
type FlushMode uint8

const (
	// FlushDefault enqueues into the scheduler's default queue.
	FlushDefault FlushMode = iota

	// FlushSyncMode invokes immediately, bypassing all queues.
	FlushSyncMode

	// FlushPre enqueues into the pre queue, drained before default jobs.
	FlushPre

	// FlushPost enqueues into the post queue, drained after default jobs.
	FlushPost
)

// Subscriber is a schedulable unit of work with a lifecycle:
// active -> paused <-> active -> disposed (terminal). It is the engine's
// effect representation; sources it reads during tracked runs link to it
// and schedule it on change.
type Subscriber struct {
	node subscriberNode

	// run is the work performed per invocation. Cleared on dispose.
	run func(args []any)

	flush FlushMode
	limit int
	sched *Scheduler
	job   *Job

	onError   func(error)
	onTrigger func(TriggerEvent)

	cleanups   []func()
	cleanupsMu sync.Mutex

	countMu sync.Mutex
	count   int

	paused   atomic.Bool
	disposed atomic.Bool

	// noScope opts the subscriber out of Scope adoption.
	noScope bool
}

// SubscriberOption configures a Subscriber at creation.
type SubscriberOption interface {
	applySubscriber(s *Subscriber)
}

type subscriberOptionFunc func(*Subscriber)

func (f subscriberOptionFunc) applySubscriber(s *Subscriber) { f(s) }

// WithFlush selects the subscriber's flush mode.
func WithFlush(mode FlushMode) SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		s.flush = mode
	})
}

// WithLimit auto-disposes the subscriber immediately after its limit-th
// actual invocation. Zero or negative means unlimited. Paused triggers and
// triggers on a disposed subscriber never count.
func WithLimit(limit int) SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		s.limit = limit
	})
}

// WithScheduler routes queued invocations through sched instead of the
// process default.
func WithScheduler(sched *Scheduler) SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		if sched != nil {
			s.sched = sched
		}
	})
}

// WithArgsMerge accumulates args across collapsed triggers while the
// subscriber is pending in a queue, instead of keeping only the newest.
func WithArgsMerge(fn func(next, prev []any) []any) SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		s.job.WithMerge(fn)
	})
}

// OnError routes callback panics to fn. Without a handler, queued
// invocations report through Warnf and synchronous invocations propagate
// to the caller that triggered them.
func OnError(fn func(error)) SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		s.onError = fn
	})
}

// OnTrackHook observes links this subscriber creates. DevMode only.
func OnTrackHook(fn func(TrackEvent)) SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		s.node.onTrack = fn
	})
}

// OnTriggerHook observes triggers delivered to this subscriber.
// DevMode only.
func OnTriggerHook(fn func(TriggerEvent)) SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		s.onTrigger = fn
	})
}

// Unscoped prevents the subscriber from being adopted by the current
// Scope.
func Unscoped() SubscriberOption {
	return subscriberOptionFunc(func(s *Subscriber) {
		s.noScope = true
	})
}

// NewSubscriber wraps fn as a subscriber. fn receives the args of the
// trigger that caused the invocation; collapsed triggers deliver merged
// args when WithArgsMerge is set.
func NewSubscriber(fn func(args []any), opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		run:   fn,
		sched: defaultScheduler,
	}
	s.node.id = nextID()
	s.node.owner = s
	s.job = NewJob(s.runQueued)

	for _, opt := range opts {
		opt.applySubscriber(s)
	}

	if !s.noScope {
		if tc := peekContext(); tc != nil && tc.scope != nil {
			tc.scope.adopt(s)
		}
	}
	return s
}

// ID returns the subscriber's unique identity.
func (s *Subscriber) ID() uint64 {
	return s.node.id
}

// DependencyIDs returns the identities of the sources this subscriber
// currently depends on, in link order. Empty after disposal. Intended for
// diagnostics and devtools.
func (s *Subscriber) DependencyIDs() []uint64 {
	var ids []uint64
	eachDepSource(&s.node, func(src *Source) bool {
		ids = append(ids, src.id)
		return true
	})
	return ids
}

// Version returns the number of tracked runs performed so far.
func (s *Subscriber) Version() uint64 {
	return s.node.version
}

// Count returns the number of actual invocations so far.
func (s *Subscriber) Count() int {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.count
}

// ResetCount zeroes the invocation counter. Returns false if the
// subscriber is disposed.
func (s *Subscriber) ResetCount() bool {
	if s.disposed.Load() {
		return false
	}
	s.countMu.Lock()
	s.count = 0
	s.countMu.Unlock()
	return true
}

// Pause makes the subscriber ignore triggers without counting them. Its
// dependency links stay alive, so Resume picks changes back up on the next
// trigger.
func (s *Subscriber) Pause() {
	s.paused.Store(true)
}

// Resume re-enables a paused subscriber. No-op after disposal.
func (s *Subscriber) Resume() {
	s.paused.Store(false)
}

// Paused reports whether the subscriber is currently paused.
func (s *Subscriber) Paused() bool {
	return s.paused.Load()
}

// Disposed reports whether the subscriber has been disposed.
func (s *Subscriber) Disposed() bool {
	return s.disposed.Load()
}

// OnCleanup registers fn to run on disposal. If the subscriber is already
// disposed, fn runs immediately.
func (s *Subscriber) OnCleanup(fn func()) {
	if s.disposed.Load() {
		fn()
		return
	}
	s.cleanupsMu.Lock()
	s.cleanups = append(s.cleanups, fn)
	s.cleanupsMu.Unlock()
}

// Trigger invokes the subscriber directly with args, routed through its
// flush mode. On a disposed subscriber it reports ErrSubscriberDisposed
// through the error handler (or warns without one) and does nothing; on a
// paused one it silently does nothing and counts nothing.
func (s *Subscriber) Trigger(args ...any) {
	s.request(args)
}

// schedule is the graph-invoked path.
func (s *Subscriber) schedule(src *Source, op OpKind, info any) {
	if DevMode && s.onTrigger != nil && !s.disposed.Load() {
		s.onTrigger(TriggerEvent{SourceID: src.id, Op: op, Info: info})
	}
	s.request([]any{info})
}

func (s *Subscriber) isDisposed() bool {
	return s.disposed.Load()
}

func (s *Subscriber) request(args []any) {
	if s.disposed.Load() {
		if s.onError != nil {
			s.onError(ErrSubscriberDisposed)
		} else {
			Warnf("subscriber %d triggered after disposal; ignored", s.node.id)
		}
		return
	}
	if s.paused.Load() {
		return
	}

	switch s.flush {
	case FlushSyncMode:
		s.invoke(args, s.onError != nil)
	case FlushPre:
		s.sched.Schedule(QueuePre, s.job, args...)
	case FlushPost:
		s.sched.Schedule(QueuePost, s.job, args...)
	default:
		s.sched.Schedule(QueueDefault, s.job, args...)
	}
}

// runQueued is the job entry point; queued invocations always isolate
// errors so one failing subscriber cannot abort its siblings in the same
// drain.
func (s *Subscriber) runQueued(args []any) {
	s.invoke(args, true)
}

// invoke performs one actual invocation: bump the counter, run the
// callback, then enforce the trigger limit. A panicking callback still
// counts.
func (s *Subscriber) invoke(args []any, isolate bool) {
	if s.disposed.Load() {
		return // disposed while queued
	}
	if s.paused.Load() {
		return // paused while queued; not counted
	}

	s.countMu.Lock()
	s.count++
	count := s.count
	s.countMu.Unlock()

	start := time.Now()
	var runErr error

	// The run event and the limit check must happen even when a sync
	// invocation panics past this frame; the panic continues to the
	// caller afterwards.
	defer func() {
		r := recover()
		if r != nil {
			runErr = toError(r)
		}
		fireEffectRun(EffectRunEvent{
			SubscriberID: s.node.id,
			Duration:     time.Since(start),
			When:         time.Now(),
			Err:          runErr,
		})
		if s.limit > 0 && count >= s.limit {
			s.Dispose()
		}
		if r != nil {
			panic(r)
		}
	}()

	func() {
		if isolate {
			defer func() {
				if r := recover(); r != nil {
					runErr = toError(r)
					s.reportError(runErr)
				}
			}()
		}
		if run := s.run; run != nil {
			run(args)
		}
	}()
}

func (s *Subscriber) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	Warnf("subscriber %d panicked: %v", s.node.id, err)
}

// Dispose permanently retires the subscriber: unlinks every dependency,
// clears the callback, and runs cleanups in reverse registration order.
// Idempotent; safe to call from inside the subscriber's own callback.
func (s *Subscriber) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	graphMu.Lock()
	clearSubscriberDeps(&s.node)
	s.node.seen = nil
	graphMu.Unlock()

	s.run = nil

	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
