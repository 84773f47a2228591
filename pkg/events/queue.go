package events

import "sync"

// Queue is the ordered, unbounded FIFO channel between capture callbacks and
// the log writer. Multiple producers may push concurrently; pushes never
// block. A soft limit, when set, sheds load by dropping the oldest pending
// event and counting it rather than stalling the OS callback thread. Close
// is one-shot and idempotent; the consumer observes closure only after
// draining everything already queued.
type Queue struct {
	mu        sync.Mutex
	nonEmpty  *sync.Cond
	items     []InputEvent
	head      int
	closed    bool
	softLimit int
	dropped   uint64
}

// NewQueue constructs a queue. softLimit bounds pending events; 0 means
// unbounded.
func NewQueue(softLimit int) *Queue {
	q := &Queue{softLimit: softLimit}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends an event, reporting whether it was accepted. It returns false
// only once the queue is closed. Accepted events are never silently lost;
// shedding under the soft limit is counted via DroppedOldest.
func (q *Queue) Push(ev InputEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.softLimit > 0 && q.pendingLocked() >= q.softLimit {
		q.head++
		q.dropped++
		q.compactLocked()
	}

	q.items = append(q.items, ev)
	q.nonEmpty.Signal()
	return true
}

// Pop blocks until an event is available or the queue is closed and drained.
// The second return value is false only for the drained-and-closed case.
func (q *Queue) Pop() (InputEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pendingLocked() == 0 && !q.closed {
		q.nonEmpty.Wait()
	}

	if q.pendingLocked() == 0 {
		return InputEvent{}, false
	}

	ev := q.items[q.head]
	q.items[q.head] = InputEvent{}
	q.head++
	q.compactLocked()
	return ev, true
}

// TryPop is the non-blocking variant of Pop. The second value reports
// whether an event was available.
func (q *Queue) TryPop() (InputEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pendingLocked() == 0 {
		return InputEvent{}, false
	}
	ev := q.items[q.head]
	q.items[q.head] = InputEvent{}
	q.head++
	q.compactLocked()
	return ev, true
}

// Close seals the producer side. Pending events remain poppable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.nonEmpty.Broadcast()
}

// Len reports the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

// DroppedOldest reports how many events were shed under the soft limit.
func (q *Queue) DroppedOldest() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) pendingLocked() int {
	return len(q.items) - q.head
}

// compactLocked reclaims the consumed prefix once it dominates the backing
// slice, keeping amortized cost constant.
func (q *Queue) compactLocked() {
	if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
}
