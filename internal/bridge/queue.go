package bridge

import "sync"

// queue is an unbounded FIFO of continuations. Posting never blocks, so
// callbacks running on the loop may post more work.
type queue struct {
	mu       sync.Mutex
	items    []func()
	signal   chan struct{}
	isClosed bool
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

// post appends fn. It reports false once the queue is closed.
func (q *queue) post(fn func()) bool {
	q.mu.Lock()
	if q.isClosed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// next blocks until work is available and returns all of it.
func (q *queue) next() ([]func(), bool) {
	for {
		q.mu.Lock()
		if q.isClosed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.items) > 0 {
			items := q.items
			q.items = nil
			q.mu.Unlock()
			return items, true
		}
		q.mu.Unlock()
		<-q.signal
	}
}

func (q *queue) close() {
	q.mu.Lock()
	q.isClosed = true
	q.items = nil
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isClosed
}
