package onebot

import "sync"

// eventQueue is the FIFO between the read loop and the dispatch goroutine.
// With limit 0 it grows without bound and never drops.
type eventQueue struct {
	mu     sync.Mutex
	items  []inbound
	limit  int
	closed bool
	signal chan struct{}
}

func newEventQueue(limit int) *eventQueue {
	return &eventQueue{
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// push appends in. It reports false when the queue is at its limit or
// already closed.
func (q *eventQueue) push(in inbound) bool {
	q.mu.Lock()
	if q.closed || (q.limit > 0 && len(q.items) >= q.limit) {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, in)
	q.mu.Unlock()
	q.wake()
	return true
}

// close lets pop drain what is left and then report false.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *eventQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop blocks until an event is available, or returns false once the queue
// is closed and empty.
func (q *eventQueue) pop() (inbound, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			in := q.items[0]
			q.items[0] = inbound{}
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return in, true
		}
		if q.closed {
			q.mu.Unlock()
			return inbound{}, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}
