package progress

import (
	"math/rand/v2"
	"sync"
	"testing"
)

func TestTrackerResetWithoutNotify(t *testing.T) {
	tracker := NewTracker()
	tracker.Reset(1000000)

	if got := tracker.State(); got != (State{Loaded: 0, Total: 1000000, Session: 1}) {
		t.Errorf("expected {0, 1000000}, got %+v", got)
	}

	initial, cancel := tracker.Subscribe(func(State) {})
	defer cancel()
	if initial != (State{Loaded: 0, Total: 1000000, Session: 1}) {
		t.Errorf("expected initial state {0, 1000000}, got %+v", initial)
	}
}

func TestTrackerNotifyPublishesSynchronously(t *testing.T) {
	tracker := NewTracker()
	tracker.Reset(1000000)

	var seen []State
	_, cancel := tracker.Subscribe(func(s State) { seen = append(seen, s) })
	defer cancel()

	tracker.Notify(500000, 1000000)
	if len(seen) != 1 || seen[0] != (State{Loaded: 500000, Total: 1000000, Fetches: 1, Session: 1}) {
		t.Fatalf("expected one update of 500000, got %+v", seen)
	}

	tracker.Notify(500000, 1000000)
	if len(seen) != 2 || seen[1] != (State{Loaded: 1000000, Total: 1000000, Fetches: 2, Session: 1}) {
		t.Fatalf("expected second update of 1000000, got %+v", seen)
	}
}

func TestTrackerMultipleSubscribers(t *testing.T) {
	tracker := NewTracker()
	tracker.Reset(100)

	var a, b int
	_, cancelA := tracker.Subscribe(func(State) { a++ })
	_, cancelB := tracker.Subscribe(func(State) { b++ })

	tracker.Notify(10, 100)
	cancelA()
	cancelA() // idempotent
	tracker.Notify(10, 100)
	cancelB()

	if a != 1 {
		t.Errorf("expected subscriber a to see 1 update, got %d", a)
	}
	if b != 2 {
		t.Errorf("expected subscriber b to see 2 updates, got %d", b)
	}
}

func TestTrackerSessionSubscriptionEndsOnReset(t *testing.T) {
	tracker := NewTracker()
	tracker.Reset(100)

	var session, global int
	_, cancelSession := tracker.SubscribeSession(func(State) { session++ })
	defer cancelSession()
	_, cancelGlobal := tracker.Subscribe(func(State) { global++ })
	defer cancelGlobal()

	tracker.Notify(10, 100)
	tracker.Reset(200)
	tracker.Notify(10, 200)

	if session != 1 {
		t.Errorf("expected session subscriber to stop after reset, got %d updates", session)
	}
	if global != 3 {
		t.Errorf("expected global subscriber to see 2 updates and the reset, got %d", global)
	}
	if got := tracker.State(); got != (State{Loaded: 10, Total: 200, Fetches: 1, Session: 2}) {
		t.Errorf("expected {10, 200}, got %+v", got)
	}
}

func TestTrackerResetPublishesClearedState(t *testing.T) {
	tracker := NewTracker()
	tracker.Reset(1000)
	tracker.Notify(400, 1000)

	var seen []State
	_, cancel := tracker.Subscribe(func(s State) { seen = append(seen, s) })
	defer cancel()

	tracker.Reset(0)
	if len(seen) != 1 {
		t.Fatalf("expected one update, got %+v", seen)
	}
	if seen[0].Loaded != 0 || seen[0].Total != 0 || seen[0].Fetches != 0 {
		t.Errorf("expected cleared state, got %+v", seen[0])
	}
	if seen[0].Session != 2 {
		t.Errorf("expected session 2, got %d", seen[0].Session)
	}
	if got := tracker.State(); got != seen[0] {
		t.Errorf("expected state %+v, got %+v", seen[0], got)
	}
}

func TestTrackerOrderIndependentTotal(t *testing.T) {
	sizes := []int64{4096, 65536, 1, 300, 12345, 65536, 777}
	var want int64
	for _, s := range sizes {
		want += s
	}

	for i := 0; i < 20; i++ {
		perm := rand.Perm(len(sizes))
		tracker := NewTracker()
		tracker.Reset(want)

		var wg sync.WaitGroup
		for _, idx := range perm {
			wg.Add(1)
			go func(n int64) {
				defer wg.Done()
				tracker.Notify(n, want)
			}(sizes[idx])
		}
		wg.Wait()

		if got := tracker.State().Loaded; got != want {
			t.Fatalf("permutation %v: expected %d loaded, got %d", perm, want, got)
		}
	}
}

func TestStatePercent(t *testing.T) {
	if p := (State{Loaded: 1, Total: 0}).Percent(); p != 0 {
		t.Errorf("expected 0 for unknown total, got %f", p)
	}
	if p := (State{Loaded: 250, Total: 1000}).Percent(); p != 25 {
		t.Errorf("expected 25, got %f", p)
	}
}
