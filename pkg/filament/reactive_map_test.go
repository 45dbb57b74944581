package filament

import (
	"sort"
	"testing"
)

func TestMapPerKeyGranularity(t *testing.T) {
	m := NewReactiveMap(map[string]any{"a": 1, "b": 2})

	aRuns := 0
	stopA := MustRunEffect(func() {
		m.Get("a")
		aRuns++
	}, EffectFlush(FlushSyncMode))
	defer stopA()

	m.Set("b", 20)
	if aRuns != 1 {
		t.Errorf("key-a effect re-ran on a key-b write: runs = %d", aRuns)
	}

	m.Set("a", 10)
	if aRuns != 2 {
		t.Errorf("key-a effect runs = %d, want 2", aRuns)
	}
}

func TestMapEqualWriteIsNoOp(t *testing.T) {
	m := NewReactiveMap(map[string]any{"a": 1})

	runs := 0
	stop := MustRunEffect(func() {
		m.Get("a")
		runs++
	}, EffectFlush(FlushSyncMode))
	defer stop()

	m.Set("a", 1)
	if runs != 1 {
		t.Errorf("equal write triggered: runs = %d", runs)
	}
}

func TestMapStructuralSource(t *testing.T) {
	m := NewReactiveMap(map[string]any{"a": 1})

	lenRuns := 0
	var lastLen int
	stop := MustRunEffect(func() {
		lastLen = m.Len()
		lenRuns++
	}, EffectFlush(FlushSyncMode))
	defer stop()

	// Overwriting an existing key is not structural.
	m.Set("a", 2)
	if lenRuns != 1 {
		t.Errorf("Len effect re-ran on a value write: runs = %d", lenRuns)
	}

	m.Set("b", 1) // new key
	if lenRuns != 2 || lastLen != 2 {
		t.Errorf("after add: runs = %d len = %d, want 2 and 2", lenRuns, lastLen)
	}

	m.Delete("a")
	if lenRuns != 3 || lastLen != 1 {
		t.Errorf("after delete: runs = %d len = %d, want 3 and 1", lenRuns, lastLen)
	}
}

func TestMapHasTracksKey(t *testing.T) {
	m := NewReactiveMap(nil)

	var present bool
	stop := MustRunEffect(func() {
		present = m.Has("pending")
	}, EffectFlush(FlushSyncMode))
	defer stop()

	if present {
		t.Fatal("Has = true on an empty map")
	}
	m.Set("pending", 1)
	if !present {
		t.Error("existence effect did not observe the key appearing")
	}
}

func TestMapDeleteFinalNotificationThenUnlink(t *testing.T) {
	m := NewReactiveMap(map[string]any{"a": 1})

	// A non-retracking subscriber shows the unlink: it gets the final
	// delete notification and nothing afterwards.
	sub := newRecordingSub()
	_ = runTracked(&sub.node, func() error {
		m.Get("a")
		return nil
	})

	m.Delete("a")
	if len(sub.calls) != 1 || sub.calls[0] != OpDelete {
		t.Fatalf("calls = %v, want one delete", sub.calls)
	}

	// Recreating the key makes a fresh source; the old subscriber stays
	// detached.
	m.Set("a", 2)
	if len(sub.calls) != 1 {
		t.Errorf("detached subscriber notified again: calls = %v", sub.calls)
	}
}

func TestMapDeleteMissingKey(t *testing.T) {
	m := NewReactiveMap(nil)

	runs := 0
	stop := MustRunEffect(func() {
		m.Len()
		runs++
	}, EffectFlush(FlushSyncMode))
	defer stop()

	m.Delete("ghost")
	if runs != 1 {
		t.Errorf("deleting a missing key was structural: runs = %d", runs)
	}
}

func TestMapKeysAndSnapshot(t *testing.T) {
	m := NewReactiveMap(map[string]any{"x": 1, "y": 2})

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "x" || keys[1] != "y" {
		t.Errorf("Keys = %v, want [x y]", keys)
	}

	snap := m.Snapshot()
	if len(snap) != 2 || snap["x"] != 1 || snap["y"] != 2 {
		t.Errorf("Snapshot = %v", snap)
	}

	// The snapshot is a copy.
	snap["x"] = 99
	if v, _ := m.Peek("x"); v != 1 {
		t.Error("mutating the snapshot leaked into the map")
	}
}

func TestMapDeepWrapping(t *testing.T) {
	m := NewReactiveMap(map[string]any{
		"user": map[string]any{"name": "ada"},
		"tags": []any{"x"},
	}, Deep())

	user, ok := m.Get("user").(*ReactiveMap)
	if !ok {
		t.Fatalf("nested map came back as %T", m.Get("user"))
	}
	if again := m.Get("user").(*ReactiveMap); again != user {
		t.Error("nested wrapper not cached")
	}

	if _, ok := m.Get("tags").(*ReactiveSlice); !ok {
		t.Fatalf("nested slice came back as %T", m.Get("tags"))
	}

	// Nested reads are tracked at the nested key level.
	runs := 0
	stop := MustRunEffect(func() {
		user.Get("name")
		runs++
	}, EffectFlush(FlushSyncMode))
	defer stop()

	user.Set("name", "grace")
	if runs != 2 {
		t.Errorf("nested key effect runs = %d, want 2", runs)
	}

	// Replacing the outer value drops the stale wrapper.
	m.Set("user", map[string]any{"name": "katherine"})
	fresh := m.Get("user").(*ReactiveMap)
	if fresh == user {
		t.Error("stale wrapper survived an outer overwrite")
	}
}

func TestMapShallowReturnsRaw(t *testing.T) {
	m := NewReactiveMap(map[string]any{"n": map[string]any{"k": 1}})
	if _, ok := m.Get("n").(map[string]any); !ok {
		t.Errorf("shallow map wrapped a nested value: %T", m.Get("n"))
	}
}

func TestMapCopiesInitial(t *testing.T) {
	initial := map[string]any{"a": 1}
	m := NewReactiveMap(initial)
	initial["a"] = 2

	if v, _ := m.Peek("a"); v != 1 {
		t.Error("map aliases the initial argument")
	}
}
