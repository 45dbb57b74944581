package filament

import (
	"sync"
	"sync/atomic"
)

// Scope owns reactive subscribers. Disposing a scope disposes every
// subscriber and child scope it contains, so consumers can tear down an
// entire effect tree with one call.
//
// Scopes form a hierarchy: a child created while a parent is current is
// disposed with it.
type Scope struct {
	id uint64

	// parent is nil for a root scope.
	parent *Scope

	children   []*Scope
	childrenMu sync.Mutex

	subscribers []*Subscriber
	subsMu      sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	disposed atomic.Bool
}

// NewScope creates a scope under parent. A nil parent creates a root.
func NewScope(parent *Scope) *Scope {
	sc := &Scope{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		parent.addChild(sc)
	}
	return sc
}

// ID returns the scope's unique identity.
func (sc *Scope) ID() uint64 {
	return sc.id
}

// Parent returns the parent scope, or nil for a root.
func (sc *Scope) Parent() *Scope {
	return sc.parent
}

// Disposed reports whether the scope has been disposed.
func (sc *Scope) Disposed() bool {
	return sc.disposed.Load()
}

// CurrentScope returns the scope adopting new subscribers on this
// goroutine, or nil.
func CurrentScope() *Scope {
	if tc := peekContext(); tc != nil {
		return tc.scope
	}
	return nil
}

// WithScope runs fn with sc as the current scope; subscribers created
// inside are adopted by it. The prior scope is restored afterwards, even
// on panic.
func WithScope(sc *Scope, fn func()) {
	tc := currentContext()
	prev := tc.scope
	tc.scope = sc
	defer func() {
		tc.scope = prev
		releaseContext(tc)
	}()
	fn()
}

// OnCleanup registers fn to run when the scope is disposed. On an already
// disposed scope, fn runs immediately.
func (sc *Scope) OnCleanup(fn func()) {
	if sc.disposed.Load() {
		fn()
		return
	}
	sc.cleanupsMu.Lock()
	sc.cleanups = append(sc.cleanups, fn)
	sc.cleanupsMu.Unlock()
}

func (sc *Scope) addChild(child *Scope) {
	sc.childrenMu.Lock()
	sc.children = append(sc.children, child)
	sc.childrenMu.Unlock()
}

func (sc *Scope) removeChild(child *Scope) {
	sc.childrenMu.Lock()
	defer sc.childrenMu.Unlock()
	for i, c := range sc.children {
		if c == child {
			sc.children = append(sc.children[:i], sc.children[i+1:]...)
			return
		}
	}
}

// adopt registers a subscriber for disposal with the scope.
func (sc *Scope) adopt(s *Subscriber) {
	if sc.disposed.Load() {
		return
	}
	sc.subsMu.Lock()
	sc.subscribers = append(sc.subscribers, s)
	sc.subsMu.Unlock()
}

// Dispose disposes the scope, its children (newest first), its
// subscribers, and finally its cleanups in reverse registration order.
// Idempotent.
func (sc *Scope) Dispose() {
	if sc.disposed.Swap(true) {
		return
	}

	if sc.parent != nil {
		sc.parent.removeChild(sc)
	}

	sc.childrenMu.Lock()
	children := sc.children
	sc.children = nil
	sc.childrenMu.Unlock()
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	sc.subsMu.Lock()
	subs := sc.subscribers
	sc.subscribers = nil
	sc.subsMu.Unlock()
	for _, s := range subs {
		s.Dispose()
	}

	sc.cleanupsMu.Lock()
	cleanups := sc.cleanups
	sc.cleanups = nil
	sc.cleanupsMu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
