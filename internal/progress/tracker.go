package progress

import (
	"sync"
)

// State is a snapshot of download progress for the active session.
type State struct {
	Loaded int64
	Total  int64

	// Fetches counts the notifications of the session.
	Fetches int

	// Session increases with every Reset.
	Session uint64
}

// Percent returns Loaded as a percentage of Total.
// Loaded may exceed Total when overlapping ranges are fetched twice.
func (s State) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Loaded) / float64(s.Total) * 100
}

// Func receives progress snapshots.
type Func func(State)

// Tracker accumulates bytes received across concurrent range fetches into a
// single (loaded, total) pair and publishes every change to its subscribers.
type Tracker struct {
	mu          sync.Mutex
	state       State
	generation  uint64
	nextID      uint64
	subscribers map[uint64]subscriber
}

type subscriber struct {
	fn Func
	// generation is 0 for subscribers that outlive session resets.
	generation uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		subscribers: make(map[uint64]subscriber),
	}
}

// Reset starts a new session of totalLength bytes and publishes the cleared
// state. Subscribers bound to the previous session are dropped first, so
// only Subscribe callers see it. Reset(0) clears progress between sessions.
func (t *Tracker) Reset(totalLength int64) State {
	t.mu.Lock()
	t.generation++
	t.state = State{Total: totalLength, Session: t.generation}
	state := t.state
	for id, sub := range t.subscribers {
		if sub.generation != 0 {
			delete(t.subscribers, id)
		}
	}
	subs := t.snapshotLocked()
	t.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
	return state
}

// Notify adds fetchedIncrement to the running total and synchronously
// publishes the new state to all subscribers. Delivery order across
// subscribers is unspecified.
func (t *Tracker) Notify(fetchedIncrement, totalLength int64) State {
	t.mu.Lock()
	t.state.Loaded += fetchedIncrement
	t.state.Total = totalLength
	t.state.Fetches++
	state := t.state
	subs := t.snapshotLocked()
	t.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
	return state
}

func (t *Tracker) snapshotLocked() []Func {
	subs := make([]Func, 0, len(t.subscribers))
	for _, sub := range t.subscribers {
		subs = append(subs, sub.fn)
	}
	return subs
}

// State returns the current snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe registers fn for every future notification until the returned
// cancel func is called. It returns the state at subscription time.
func (t *Tracker) Subscribe(fn Func) (State, func()) {
	return t.subscribe(fn, 0)
}

// SubscribeSession is like Subscribe but the subscription ends at the next
// Reset, so it never observes another session's progress.
func (t *Tracker) SubscribeSession(fn Func) (State, func()) {
	t.mu.Lock()
	gen := t.generation
	t.mu.Unlock()
	return t.subscribe(fn, gen)
}

func (t *Tracker) subscribe(fn Func, generation uint64) (State, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.subscribers[id] = subscriber{fn: fn, generation: generation}

	var once sync.Once
	return t.state, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subscribers, id)
			t.mu.Unlock()
		})
	}
}
