// Package filament provides a fine-grained reactive dependency-tracking
// engine: signals, computed values, effects, and the scheduler that decides
// when and in what order dependent computations re-run.
//
// The engine maintains a live bidirectional graph between data sources
// (signals) and the computations that read them (subscribers). Reading a
// signal during a tracked run links the active subscriber to that signal;
// writing a signal walks its subscriber list and schedules each one.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := NewSignal(0)
//	value := count.Get()  // Read (links the active subscriber)
//	count.Set(5)          // Write (schedules dependents)
//	count.Update(func(n int) int { return n + 1 })
//
// Memo[T] is a lazily recomputed derived value:
//
//	doubled := NewMemo(func() int { return count.Get() * 2 })
//	value := doubled.Get()  // Recomputes only while dirty
//
// RunEffect wraps a function as a disposable re-runnable effect:
//
//	stop, err := RunEffect(func() {
//	    fmt.Println("Count is:", count.Get())
//	})
//
// # Scheduling
//
// Triggered subscribers are routed through per-class job queues (pre,
// default, post) drained asynchronously, or invoked immediately with
// FlushSync. Repeated triggers of the same subscriber within one flush
// collapse into a single run. Batch groups writes so dependents are
// notified once:
//
//	Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})
//
// # Thread Safety
//
// All primitives are safe for concurrent use. The tracking context is
// per-goroutine, so effect bodies must not spread signal reads across
// goroutines and expect them to be tracked.
package filament
