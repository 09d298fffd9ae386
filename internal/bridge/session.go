package bridge

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ligustah/rangeview/pkg/engine"
)

// State is the lifecycle state of the bridge.
type State int

const (
	// Idle means there is no active session.
	Idle State = iota
	// Discovering means a size discovery is in flight.
	Discovering
	// Transporting means the engine is pulling ranges.
	Transporting
	// Resolved means the engine produced a document handle.
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Discovering:
		return "discovering"
	case Transporting:
		return "transporting"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Info is a point-in-time snapshot of the bridge.
type Info struct {
	State       State
	ResourceID  string
	Generation  uint64
	TotalLength int64
	// BytesFetched is cumulative and may exceed TotalLength when the engine
	// requests overlapping ranges.
	BytesFetched int64
	Document     engine.Document
	// Discarded counts asynchronous results dropped because their session
	// had been replaced or the bridge closed.
	Discarded uint64
}

type rangeKey struct {
	begin, end int64
}

// session is one document session. Every continuation that touches it
// carries the pointer and checks it against the bridge before acting.
type session struct {
	resourceID   string
	generation   uint64
	totalLength  int64
	bytesFetched int64

	transport engine.Transport
	document  engine.Document
	cache     *lru.Cache[rangeKey, []byte]

	// ctx scopes engine resolution only; fetches never observe it.
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	// dropped is set once the session is replaced; read outside the loop.
	dropped atomic.Bool
}

func newSession(parent context.Context, resourceID string, generation uint64, totalLength int64, cacheEntries int) (*session, error) {
	s := &session{
		resourceID:  resourceID,
		generation:  generation,
		totalLength: totalLength,
	}
	if cacheEntries > 0 {
		cache, err := lru.New[rangeKey, []byte](cacheEntries)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	s.ctx, s.cancel = context.WithCancel(parent)
	return s, nil
}

// drop detaches the session. In-flight results that still reference it
// are discarded when they arrive.
func (s *session) drop() {
	if s.dropped.Swap(true) {
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()
	if s.cache != nil {
		s.cache.Purge()
	}
}
