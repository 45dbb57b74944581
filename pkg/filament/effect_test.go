package filament

import (
	"errors"
	"sync"
	"testing"
)

func TestRunEffectNilFn(t *testing.T) {
	stop, err := RunEffect(nil)
	if !errors.Is(err, ErrNilEffect) {
		t.Errorf("err = %v, want ErrNilEffect", err)
	}
	if stop != nil {
		t.Error("stop != nil for a nil fn")
	}
}

func TestRunEffectNoDeps(t *testing.T) {
	ran := false
	stop, err := RunEffect(func() { ran = true })
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if !ran {
		t.Error("establishing run did not execute")
	}
	if stop != nil {
		t.Error("dependency-free effect returned a live stop")
	}
}

func TestRunEffectSyncReruns(t *testing.T) {
	sig := NewSignal(1)
	var seen []int
	stop := MustRunEffect(func() {
		seen = append(seen, sig.Get())
	}, EffectFlush(FlushSyncMode))
	defer stop()

	sig.Set(2)
	sig.Set(3)

	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Errorf("seen = %v, want [1 2 3]", seen)
	}
}

func TestRunEffectDefaultFlushIsAsync(t *testing.T) {
	sched := NewScheduler()
	sig := NewSignal(0)

	var mu sync.Mutex
	runs := 0
	stop := MustRunEffect(func() {
		sig.Get()
		mu.Lock()
		runs++
		mu.Unlock()
	}, EffectScheduler(sched))
	defer stop()

	sched.Batch(func() {
		sig.Set(1)
		mu.Lock()
		r := runs
		mu.Unlock()
		if r != 1 {
			t.Errorf("effect re-ran synchronously on a default-flush write: runs=%d", r)
		}
	})
	sched.Wait()

	mu.Lock()
	defer mu.Unlock()
	if runs != 2 {
		t.Errorf("runs after drain = %d, want 2", runs)
	}
}

func TestRunEffectCollapsesWritesInBatch(t *testing.T) {
	sched := NewScheduler()
	sig := NewSignal(0)

	var mu sync.Mutex
	runs := 0
	stop := MustRunEffect(func() {
		sig.Get()
		mu.Lock()
		runs++
		mu.Unlock()
	}, EffectScheduler(sched))
	defer stop()

	sched.Batch(func() {
		sig.Set(1)
		sig.Set(2)
		sig.Set(3)
	})
	sched.Wait()

	mu.Lock()
	defer mu.Unlock()
	if runs != 2 {
		t.Errorf("runs = %d, want 2 (establishing + one collapsed re-run)", runs)
	}
}

func TestRunEffectConditionalRetracking(t *testing.T) {
	useA := NewSignal(true)
	a := NewSignal("a0")
	b := NewSignal("b0")

	runs := 0
	stop := MustRunEffect(func() {
		runs++
		if useA.Get() {
			a.Get()
		} else {
			b.Get()
		}
	}, EffectFlush(FlushSyncMode))
	defer stop()

	b.Set("b1") // untracked branch
	if runs != 1 {
		t.Fatalf("runs after untracked-branch write = %d, want 1", runs)
	}

	useA.Set(false) // switch branches
	if runs != 2 {
		t.Fatalf("runs after switch = %d, want 2", runs)
	}

	a.Set("a1") // now the untracked branch
	if runs != 2 {
		t.Errorf("runs after old-branch write = %d, want 2; stale link survived", runs)
	}
	b.Set("b2")
	if runs != 3 {
		t.Errorf("runs after new-branch write = %d, want 3", runs)
	}
}

func TestRunEffectStopIsIdempotent(t *testing.T) {
	sig := NewSignal(0)
	runs := 0
	stop := MustRunEffect(func() {
		sig.Get()
		runs++
	}, EffectFlush(FlushSyncMode))

	stop()
	stop()
	sig.Set(1)
	if runs != 1 {
		t.Errorf("runs after stop = %d, want 1", runs)
	}
}

func TestRunEffectTrackManual(t *testing.T) {
	mode := NewSignal("init")
	extra := NewSignal(0)

	runs := 0
	stop := MustRunEffect(func() {
		runs++
		mode.Get()
		if runs > 1 {
			extra.Get() // read during an untracked re-run; must not link
		}
	}, WithTrackMode(TrackManual), EffectFlush(FlushSyncMode))
	defer stop()

	mode.Set("second")
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}

	extra.Set(1)
	if runs != 2 {
		t.Errorf("manual-mode effect picked up a re-run read: runs = %d", runs)
	}

	// The establishing dependency set stays live.
	mode.Set("third")
	if runs != 3 {
		t.Errorf("runs = %d, want 3; frozen dependency lost", runs)
	}
}

func TestRunEffectTrackOnce(t *testing.T) {
	sig := NewSignal(0)
	runs := 0
	stop := MustRunEffect(func() {
		sig.Get()
		runs++
	}, WithTrackMode(TrackOnce), EffectFlush(FlushSyncMode))
	defer stop()

	sig.Set(1)
	sig.Set(2)
	if runs != 2 {
		t.Errorf("runs = %d, want 2 (establishing + single re-run)", runs)
	}
}

func TestRunEffectLimit(t *testing.T) {
	sig := NewSignal(0)
	runs := 0
	stop := MustRunEffect(func() {
		sig.Get()
		runs++
	}, EffectLimit(2), EffectFlush(FlushSyncMode))
	defer stop()

	sig.Set(1)
	sig.Set(2)
	sig.Set(3)
	if runs != 3 {
		t.Errorf("runs = %d, want 3 (establishing + two limited re-runs)", runs)
	}
}

func TestRunEffectErrorHandler(t *testing.T) {
	sig := NewSignal(0)
	var caught error
	stop := MustRunEffect(func() {
		if sig.Get() > 0 {
			panic("re-run failure")
		}
	}, EffectFlush(FlushSyncMode), EffectOnError(func(err error) { caught = err }))
	defer stop()

	sig.Set(1)
	if caught == nil {
		t.Error("re-run panic not routed to the handler")
	}
}

func TestRunEffectEstablishingPanicPropagates(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("establishing-run panic did not propagate")
		}
	}()
	_, _ = RunEffect(func() {
		panic("establishing failure")
	})
}
