package filament

import (
	"sync"
	"testing"
)

func TestHookOnTrackFires(t *testing.T) {
	var mu sync.Mutex
	var events []TrackEvent
	remove := HookOnTrack(func(ev TrackEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer remove()

	sig := NewSignal(0)
	sub := newRecordingSub()
	_ = runTracked(&sub.node, func() error {
		sig.Get()
		sig.Get() // duplicate; links once, fires once
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	count := 0
	for _, ev := range events {
		if ev.SubscriberID == sub.node.id {
			count++
			if ev.Op != OpGet {
				t.Errorf("op = %s, want get", ev.Op)
			}
		}
	}
	if count != 1 {
		t.Errorf("track events for subscriber = %d, want 1", count)
	}
}

func TestHookOnTriggerFires(t *testing.T) {
	var mu sync.Mutex
	var last TriggerEvent
	remove := HookOnTrigger(func(ev TriggerEvent) {
		mu.Lock()
		last = ev
		mu.Unlock()
	})
	defer remove()

	sig := NewSignal(0)
	id := sig.ID()
	sig.Set(1)

	mu.Lock()
	defer mu.Unlock()
	if last.SourceID != id {
		t.Errorf("source id = %d, want %d", last.SourceID, id)
	}
	if last.Op != OpSet {
		t.Errorf("op = %s, want set", last.Op)
	}
}

func TestHookOnFlushFires(t *testing.T) {
	sched := NewScheduler()

	var mu sync.Mutex
	var flushes []FlushEvent
	remove := HookOnFlush(func(ev FlushEvent) {
		mu.Lock()
		flushes = append(flushes, ev)
		mu.Unlock()
	})
	defer remove()

	sched.StartBatch()
	sched.Schedule(QueueDefault, NewJob(func([]any) {}))
	sched.Schedule(QueueDefault, NewJob(func([]any) {}))
	sched.FlushSync()
	sched.EndBatch()

	mu.Lock()
	defer mu.Unlock()
	if len(flushes) == 0 {
		t.Fatal("no flush event fired")
	}
	last := flushes[len(flushes)-1]
	if last.Jobs != 2 {
		t.Errorf("jobs = %d, want 2", last.Jobs)
	}
	if last.When.IsZero() {
		t.Error("flush timestamp is zero")
	}
}

func TestHookRemoveStopsDelivery(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	remove := HookOnEffectRun(func(EffectRunEvent) {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	remove()
	remove() // removing twice is safe

	sub := NewSubscriber(func([]any) {}, WithFlush(FlushSyncMode))
	defer sub.Dispose()
	sub.Trigger()

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("removed hook fired %d times", fired)
	}
}

func TestOpKindStrings(t *testing.T) {
	cases := map[OpKind]string{
		OpGet:       "get",
		OpSet:       "set",
		OpAdd:       "add",
		OpDelete:    "delete",
		OpDirty:     "dirty",
		OpLength:    "length",
		OpStructure: "structure",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("OpKind(%d).String() = %q, want %q", op, got, want)
		}
	}
}
