package filament

import (
	"testing"

	"github.com/petermattis/goid"
)

func TestTrackWithoutActiveSubscriber(t *testing.T) {
	src := NewSource()
	before := LiveLinks()
	Track(&src, OpGet)
	if LiveLinks() != before {
		t.Error("Track without an active subscriber created a link")
	}
}

func TestRunTrackedCollectsDeps(t *testing.T) {
	sub := newRecordingSub()
	a, b := NewSource(), NewSource()

	err := runTracked(&sub.node, func() error {
		Track(&a, OpGet)
		Track(&b, OpGet)
		return nil
	})
	if err != nil {
		t.Fatalf("runTracked error: %v", err)
	}

	deps := depSources(&sub.node)
	if len(deps) != 2 || deps[0] != &a || deps[1] != &b {
		t.Errorf("deps = %v, want [a b] in read order", deps)
	}
	if sub.node.version != 1 {
		t.Errorf("version = %d, want 1", sub.node.version)
	}
}

func TestRunTrackedRetracksFromScratch(t *testing.T) {
	sub := newRecordingSub()
	a, b := NewSource(), NewSource()

	_ = runTracked(&sub.node, func() error {
		Track(&a, OpGet)
		return nil
	})
	_ = runTracked(&sub.node, func() error {
		Track(&b, OpGet)
		return nil
	})

	deps := depSources(&sub.node)
	if len(deps) != 1 || deps[0] != &b {
		t.Errorf("deps after re-track = %v, want [b] only", deps)
	}
	if sub.node.version != 2 {
		t.Errorf("version = %d, want 2", sub.node.version)
	}
}

func TestDuplicateReadsLinkOnce(t *testing.T) {
	sub := newRecordingSub()
	src := NewSource()

	_ = runTracked(&sub.node, func() error {
		Track(&src, OpGet)
		Track(&src, OpGet)
		Track(&src, OpGet)
		return nil
	})

	if deps := depSources(&sub.node); len(deps) != 1 {
		t.Errorf("duplicate reads created %d links, want 1", len(deps))
	}
}

func TestDuplicateCheckResetsPerRun(t *testing.T) {
	sub := newRecordingSub()
	src := NewSource()

	for i := 0; i < 3; i++ {
		_ = runTracked(&sub.node, func() error {
			Track(&src, OpGet)
			return nil
		})
	}

	if deps := depSources(&sub.node); len(deps) != 1 {
		t.Errorf("re-tracking accumulated %d links, want 1", len(deps))
	}
}

func TestRunTrackedRestoresActiveOnPanic(t *testing.T) {
	outer := newRecordingSub()
	inner := newRecordingSub()
	src := NewSource()

	_ = runTracked(&outer.node, func() error {
		func() {
			defer func() { recover() }()
			_ = runTracked(&inner.node, func() error {
				panic("boom")
			})
		}()
		// The outer subscriber must be active again.
		Track(&src, OpGet)
		return nil
	})

	deps := depSources(&outer.node)
	if len(deps) != 1 || deps[0] != &src {
		t.Errorf("outer deps = %v, want [src]; active subscriber not restored", deps)
	}
}

func TestUntrackedSuppressesLinks(t *testing.T) {
	sub := newRecordingSub()
	src := NewSource()

	_ = runTracked(&sub.node, func() error {
		Untracked(func() {
			Track(&src, OpGet)
		})
		return nil
	})

	if deps := depSources(&sub.node); len(deps) != 0 {
		t.Errorf("Untracked read created %d links, want 0", len(deps))
	}
}

func TestUntrackedNests(t *testing.T) {
	sub := newRecordingSub()
	a, b := NewSource(), NewSource()

	_ = runTracked(&sub.node, func() error {
		Untracked(func() {
			Untracked(func() {})
			// Still suspended: the inner pair must not re-enable tracking.
			Track(&a, OpGet)
		})
		Track(&b, OpGet)
		return nil
	})

	deps := depSources(&sub.node)
	if len(deps) != 1 || deps[0] != &b {
		t.Errorf("deps = %v, want [b] only", deps)
	}
}

func TestUntrackedRestoresOnPanic(t *testing.T) {
	sub := newRecordingSub()
	src := NewSource()

	_ = runTracked(&sub.node, func() error {
		func() {
			defer func() { recover() }()
			Untracked(func() { panic("boom") })
		}()
		Track(&src, OpGet)
		return nil
	})

	if deps := depSources(&sub.node); len(deps) != 1 {
		t.Errorf("tracking not restored after panic inside Untracked: %d links", len(deps))
	}
}

func TestIsTracking(t *testing.T) {
	if IsTracking() {
		t.Error("IsTracking true outside any tracked run")
	}

	sub := newRecordingSub()
	_ = runTracked(&sub.node, func() error {
		if !IsTracking() {
			t.Error("IsTracking false inside a tracked run")
		}
		Untracked(func() {
			if IsTracking() {
				t.Error("IsTracking true inside Untracked")
			}
		})
		return nil
	})
}

func TestPeekDoesNotLink(t *testing.T) {
	sig := NewSignal(1)
	sub := newRecordingSub()

	_ = runTracked(&sub.node, func() error {
		if got := sig.Peek(); got != 1 {
			t.Errorf("Peek = %d, want 1", got)
		}
		if got := UntrackedGet(sig); got != 1 {
			t.Errorf("UntrackedGet = %d, want 1", got)
		}
		return nil
	})

	if deps := depSources(&sub.node); len(deps) != 0 {
		t.Errorf("Peek created %d links, want 0", len(deps))
	}
}

func TestTriggerSnapshotToleratesMutationDuringPass(t *testing.T) {
	// A sync subscriber that disposes itself while being scheduled must
	// not corrupt the pass over its siblings.
	sig := NewSignal(0)

	var selfStop Stop
	ran := 0
	selfStop = MustRunEffect(func() {
		sig.Get()
		ran++
		if ran > 1 && selfStop != nil {
			selfStop()
		}
	}, EffectFlush(FlushSyncMode))

	otherRuns := 0
	otherStop := MustRunEffect(func() {
		sig.Get()
		otherRuns++
	}, EffectFlush(FlushSyncMode))
	defer otherStop()

	sig.Set(1)
	sig.Set(2)

	if otherRuns != 3 {
		t.Errorf("sibling effect runs = %d, want 3", otherRuns)
	}
}

func TestTrackedRunsReleaseGoroutineContexts(t *testing.T) {
	contexts := func() int {
		n := 0
		trackingContexts.Range(func(_, _ any) bool {
			n++
			return true
		})
		return n
	}

	src := NewSignal(0)
	stop := MustRunEffect(func() {
		src.Get()
	})
	defer stop()
	Wait()

	before := contexts()
	for i := 1; i <= 200; i++ {
		src.Set(i)
		Wait()
	}
	after := contexts()

	if after > before {
		t.Errorf("tracking contexts grew from %d to %d over 200 flushes", before, after)
	}
}

func TestUntrackedReadLeavesNoContext(t *testing.T) {
	src := NewSignal(1)

	done := make(chan int64)
	go func() {
		_ = src.Get()
		_ = IsTracking()
		done <- goid.Get()
	}()
	gid := <-done

	if _, ok := trackingContexts.Load(gid); ok {
		t.Error("a bare read registered a tracking context for its goroutine")
	}
}
