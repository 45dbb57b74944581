package filament

import (
	"strings"
	"testing"
)

func TestMemoLazyRecompute(t *testing.T) {
	src := NewSignal(0)
	computes := 0
	m := NewMemo(func() int {
		computes++
		return src.Get() * 2
	})

	if computes != 0 {
		t.Fatalf("getter ran %d times before first read", computes)
	}
	if got := m.Get(); got != 0 {
		t.Errorf("Get = %d, want 0", got)
	}
	if computes != 1 {
		t.Fatalf("computes after first read = %d, want 1", computes)
	}

	// Clean reads hit the cache.
	m.Get()
	m.Get()
	if computes != 1 {
		t.Errorf("computes after repeated clean reads = %d, want 1", computes)
	}

	// An upstream write only marks the memo stale.
	src.Set(2)
	if computes != 1 {
		t.Errorf("upstream write recomputed eagerly: computes = %d", computes)
	}
	if !m.Dirty() {
		t.Error("memo not dirty after upstream write")
	}

	if got := m.Get(); got != 4 {
		t.Errorf("Get after write = %d, want 4", got)
	}
	if computes != 2 {
		t.Errorf("computes after stale read = %d, want 2", computes)
	}
}

func TestMemoDirtyTransitionNotifiesOnce(t *testing.T) {
	src := NewSignal(0)
	m := NewMemo(func() int { return src.Get() })
	m.Get() // establish upstream links

	downstream := newRecordingSub()
	_ = runTracked(&downstream.node, func() error {
		Track(&m.src, OpGet)
		return nil
	})

	src.Set(1)
	src.Set(2)
	src.Set(3)

	// Only the clean-to-dirty transition propagates.
	if len(downstream.calls) != 1 {
		t.Errorf("downstream notifications = %d, want 1", len(downstream.calls))
	}
	if downstream.calls[0] != OpDirty {
		t.Errorf("notification op = %s, want dirty", downstream.calls[0])
	}

	// Reading cleans the memo; the next write propagates again.
	m.Get()
	src.Set(4)
	if len(downstream.calls) != 2 {
		t.Errorf("downstream notifications after clean = %d, want 2", len(downstream.calls))
	}
}

func TestMemoChain(t *testing.T) {
	src := NewSignal(1)
	double := NewMemo(func() int { return src.Get() * 2 })
	plusOne := NewMemo(func() int { return double.Get() + 1 })

	if got := plusOne.Get(); got != 3 {
		t.Errorf("chain value = %d, want 3", got)
	}
	src.Set(5)
	if got := plusOne.Get(); got != 11 {
		t.Errorf("chain value after write = %d, want 11", got)
	}
}

func TestMemoWithEffect(t *testing.T) {
	src := NewSignal(1)
	m := NewMemo(func() int { return src.Get() * 10 })

	var seen []int
	stop := MustRunEffect(func() {
		seen = append(seen, m.Get())
	}, EffectFlush(FlushSyncMode))
	defer stop()

	src.Set(2)
	src.Set(3)

	want := []int{10, 20, 30}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
}

func TestMemoSetter(t *testing.T) {
	src := NewSignal(1)
	m := NewMemo(func() int { return src.Get() }).WithSetter(func(v int) {
		src.Set(v)
	})

	m.Set(7)
	if got := m.Get(); got != 7 {
		t.Errorf("Get after Set = %d, want 7", got)
	}
}

func TestMemoWithoutSetterWarns(t *testing.T) {
	var warned string
	prev := Warnf
	Warnf = func(format string, args ...any) { warned = format }
	defer func() { Warnf = prev }()

	m := NewMemo(func() int { return 1 })
	m.Set(2)

	if warned == "" {
		t.Error("setterless write did not warn")
	}
	if !strings.Contains(warned, "setter") {
		t.Errorf("warning %q does not mention the missing setter", warned)
	}
	if got := m.Get(); got != 1 {
		t.Errorf("Get after dropped write = %d, want 1", got)
	}
}

func TestMemoPanickingGetterStaysDirty(t *testing.T) {
	src := NewSignal(0)
	boom := true
	m := NewMemo(func() int {
		v := src.Get()
		if boom {
			panic("getter failure")
		}
		return v + 100
	})

	func() {
		defer func() { recover() }()
		m.Get()
	}()

	if !m.Dirty() {
		t.Fatal("memo clean after a panicking recompute")
	}

	boom = false
	if got := m.Get(); got != 100 {
		t.Errorf("Get after recovery = %d, want 100", got)
	}
}

func TestMemoCycleGuard(t *testing.T) {
	var m *Memo[int]
	m = NewMemo(func() int {
		// A self-referential getter must not recurse forever.
		return m.Get() + 1
	})

	// The inner Get hits the computing guard and returns the current
	// cache (zero value), so the result is 1.
	if got := m.Get(); got != 1 {
		t.Errorf("self-referential memo = %d, want 1", got)
	}
}

func TestMemoDispose(t *testing.T) {
	src := NewSignal(0)
	m := NewMemo(func() int { return src.Get() })
	m.Get()

	downstream := newRecordingSub()
	_ = runTracked(&downstream.node, func() error {
		Track(&m.src, OpGet)
		return nil
	})

	m.Dispose()
	m.Dispose() // idempotent

	src.Set(1)
	if len(downstream.calls) != 0 {
		t.Errorf("disposed memo still notified downstream %d times", len(downstream.calls))
	}
	if deps := depSources(&m.node); len(deps) != 0 {
		t.Errorf("disposed memo keeps %d upstream links", len(deps))
	}
}
