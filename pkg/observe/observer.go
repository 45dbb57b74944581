package observe

import (
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/filament-dev/filament/pkg/filament"
)

// AllProps subscribes a callback to every property of a target.
const AllProps = "*"

// Callback receives the property keys that changed. In batch mode a single
// invocation may carry keys accumulated across several Notify calls.
type Callback func(props []string)

// Unsubscribe removes a registration and disposes its subscriber.
type Unsubscribe func()

// Option configures a registration.
type Option func(*registration)

// Batch defers invocation to the scheduler's default queue. Multiple
// notifications of the same registration before the queue drains collapse
// into one invocation carrying the union of changed keys. Without Batch,
// the callback runs synchronously once per Notify call, with no collapsing.
func Batch() Option {
	return func(r *registration) {
		r.batch = true
	}
}

// Limit auto-removes the registration after its limit-th invocation.
// Zero or negative means unlimited.
func Limit(n int) Option {
	return func(r *registration) {
		r.limit = n
	}
}

// OnError routes callback panics to fn instead of the default warning log.
func OnError(fn func(error)) Option {
	return func(r *registration) {
		r.onError = fn
	}
}

// WithScheduler routes batched invocations through sched instead of the
// process default.
func WithScheduler(sched *filament.Scheduler) Option {
	return func(r *registration) {
		r.sched = sched
	}
}

// InScope ties the registration's lifetime to sc: disposing the scope
// removes the registration. Registrations created inside a WithScope block
// are adopted by the current scope regardless.
func InScope(sc *filament.Scope) Option {
	return func(r *registration) {
		r.scope = sc
	}
}

type registration struct {
	id      uint64
	props   []string // AllProps entries live in the target's all bucket
	sub     *filament.Subscriber
	batch   bool
	limit   int
	onError func(error)
	sched   *filament.Scheduler
	scope   *filament.Scope
}

// targetRegs indexes a single target's registrations by property key.
type targetRegs struct {
	byProp map[string]map[uint64]*registration
	all    map[uint64]*registration
}

func (t *targetRegs) empty() bool {
	return len(t.byProp) == 0 && len(t.all) == 0
}

// Observer is a key-based notify path for plain objects that are not
// wrapped in reactive containers. Callers register callbacks against
// (target, property) pairs and report changes with Notify; the observer
// never inspects the target itself.
//
// It shares the engine's scheduler, so batched observer callbacks drain in
// the same flush cycle as queued effects and are visible to FlushSync and
// Wait.
type Observer struct {
	mu      sync.RWMutex
	targets map[any]*targetRegs
}

// New creates an empty observer.
func New() *Observer {
	return &Observer{targets: make(map[any]*targetRegs)}
}

// Default is the shared process-wide observer used by the package-level
// functions.
var Default = New()

// Subscribe registers cb against a single property of target. Passing
// AllProps matches every property.
func (o *Observer) Subscribe(target any, prop string, cb Callback, opts ...Option) Unsubscribe {
	return o.SubscribeMany(target, []string{prop}, cb, opts...)
}

// SubscribeAll registers cb against every property of target.
func (o *Observer) SubscribeAll(target any, cb Callback, opts ...Option) Unsubscribe {
	return o.SubscribeMany(target, []string{AllProps}, cb, opts...)
}

// SubscribeMany registers one callback against a set of properties. The
// callback is shared: in batch mode, changes to several of its properties
// within one flush cycle produce a single invocation.
func (o *Observer) SubscribeMany(target any, props []string, cb Callback, opts ...Option) Unsubscribe {
	r := &registration{
		props: props,
		sched: filament.DefaultScheduler(),
	}
	for _, opt := range opts {
		opt(r)
	}

	subOpts := []filament.SubscriberOption{
		filament.WithScheduler(r.sched),
		filament.WithLimit(r.limit),
	}
	if r.batch {
		subOpts = append(subOpts,
			filament.WithFlush(filament.FlushDefault),
			filament.WithArgsMerge(mergeProps),
		)
	} else {
		subOpts = append(subOpts, filament.WithFlush(filament.FlushSyncMode))
	}
	if r.onError != nil {
		subOpts = append(subOpts, filament.OnError(r.onError))
	}

	r.sub = filament.NewSubscriber(func(args []any) {
		cb(toProps(args))
	}, subOpts...)
	r.id = r.sub.ID()

	o.mu.Lock()
	t := o.targets[target]
	if t == nil {
		t = &targetRegs{byProp: make(map[string]map[uint64]*registration)}
		o.targets[target] = t
	}
	for _, prop := range r.props {
		if prop == AllProps {
			if t.all == nil {
				t.all = make(map[uint64]*registration)
			}
			t.all[r.id] = r
			continue
		}
		bucket := t.byProp[prop]
		if bucket == nil {
			bucket = make(map[uint64]*registration)
			t.byProp[prop] = bucket
		}
		bucket[r.id] = r
	}
	o.mu.Unlock()

	// Limit-exhausted subscribers dispose themselves; drop the registry
	// entry when that happens so Notify stops looking at them.
	r.sub.OnCleanup(func() {
		o.remove(target, r)
	})
	if r.scope != nil {
		r.scope.OnCleanup(r.sub.Dispose)
	}

	var once atomic.Bool
	return func() {
		if once.Swap(true) {
			return
		}
		r.sub.Dispose()
	}
}

// Notify reports that the given properties of target changed. Synchronous
// registrations run before Notify returns; batched registrations are
// queued. A registration matched by several of the props receives them all
// in one trigger.
func (o *Observer) Notify(target any, props ...string) {
	if len(props) == 0 {
		return
	}

	o.mu.RLock()
	t := o.targets[target]
	if t == nil {
		o.mu.RUnlock()
		return
	}

	changed := mapset.NewThreadUnsafeSet[string]()
	type match struct {
		reg   *registration
		props []string
	}
	var matches []match
	index := make(map[uint64]int)

	add := func(r *registration, prop string) {
		if i, ok := index[r.id]; ok {
			matches[i].props = append(matches[i].props, prop)
			return
		}
		index[r.id] = len(matches)
		matches = append(matches, match{reg: r, props: []string{prop}})
	}

	for _, prop := range props {
		if !changed.Add(prop) {
			continue // duplicate key within one call
		}
		for _, r := range t.byProp[prop] {
			add(r, prop)
		}
		for _, r := range t.all {
			add(r, prop)
		}
	}
	o.mu.RUnlock()

	// Trigger outside the lock so sync callbacks may subscribe or
	// unsubscribe on this observer.
	for _, m := range matches {
		args := make([]any, len(m.props))
		for i, p := range m.props {
			args[i] = p
		}
		m.reg.sub.Trigger(args...)
	}
}

// Forget drops every registration for target and disposes their
// subscribers. Pending batched invocations for those registrations are
// discarded.
func (o *Observer) Forget(target any) {
	o.mu.Lock()
	t := o.targets[target]
	delete(o.targets, target)
	o.mu.Unlock()
	if t == nil {
		return
	}

	disposed := mapset.NewThreadUnsafeSet[uint64]()
	for _, bucket := range t.byProp {
		for _, r := range bucket {
			if disposed.Add(r.id) {
				r.sub.Dispose()
			}
		}
	}
	for _, r := range t.all {
		if disposed.Add(r.id) {
			r.sub.Dispose()
		}
	}
}

func (o *Observer) remove(target any, r *registration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.targets[target]
	if t == nil {
		return
	}
	for _, prop := range r.props {
		if prop == AllProps {
			delete(t.all, r.id)
			continue
		}
		if bucket := t.byProp[prop]; bucket != nil {
			delete(bucket, r.id)
			if len(bucket) == 0 {
				delete(t.byProp, prop)
			}
		}
	}
	if t.empty() {
		delete(o.targets, target)
	}
}

// Subscribe registers on the Default observer.
func Subscribe(target any, prop string, cb Callback, opts ...Option) Unsubscribe {
	return Default.Subscribe(target, prop, cb, opts...)
}

// SubscribeAll registers on the Default observer.
func SubscribeAll(target any, cb Callback, opts ...Option) Unsubscribe {
	return Default.SubscribeAll(target, cb, opts...)
}

// SubscribeMany registers on the Default observer.
func SubscribeMany(target any, props []string, cb Callback, opts ...Option) Unsubscribe {
	return Default.SubscribeMany(target, props, cb, opts...)
}

// Notify reports changes on the Default observer.
func Notify(target any, props ...string) {
	Default.Notify(target, props...)
}

// mergeProps unions the property keys of collapsed triggers, keeping first
// occurrence order.
func mergeProps(next, prev []any) []any {
	merged := prev
	for _, n := range next {
		dup := false
		for _, p := range prev {
			if p == n {
				dup = true
				break
			}
		}
		if !dup {
			merged = append(merged, n)
		}
	}
	return merged
}

func toProps(args []any) []string {
	props := make([]string, 0, len(args))
	for _, a := range args {
		if s, ok := a.(string); ok {
			props = append(props, s)
		}
	}
	return props
}
