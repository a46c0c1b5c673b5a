package events

import "sync"

// DefaultMaxQueued is used when no positive limit is configured.
const DefaultMaxQueued = 1024

// MemoryQueue is an in-memory Queue. When full, publishing drops the oldest
// queued event. Safe for concurrent use.
type MemoryQueue struct {
	mu        sync.Mutex
	events    []Event
	maxQueued int
	dropped   int
	observers []func(Event)
	holds     int
	pending   []Event
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a queue holding at most maxQueued events.
// maxQueued <= 0 selects DefaultMaxQueued.
func NewMemoryQueue(maxQueued int) *MemoryQueue {
	if maxQueued <= 0 {
		maxQueued = DefaultMaxQueued
	}
	return &MemoryQueue{maxQueued: maxQueued}
}

// Publish queues ev and notifies observers outside the lock, or postpones the
// notification while the queue is held.
func (q *MemoryQueue) Publish(ev Event) {
	q.mu.Lock()
	if len(q.events) >= q.maxQueued {
		q.events = q.events[1:]
		q.dropped++
	}
	q.events = append(q.events, ev)
	if q.holds > 0 {
		if len(q.observers) > 0 {
			q.pending = append(q.pending, ev)
		}
		q.mu.Unlock()
		return
	}
	observers := append([]func(Event){}, q.observers...)
	q.mu.Unlock()

	notify(observers, []Event{ev})
}

func (q *MemoryQueue) Hold() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.holds++
}

func (q *MemoryQueue) Release() {
	q.mu.Lock()
	if q.holds == 0 {
		q.mu.Unlock()
		return
	}
	q.holds--
	if q.holds > 0 || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	pending := q.pending
	q.pending = nil
	observers := append([]func(Event){}, q.observers...)
	q.mu.Unlock()

	notify(observers, pending)
}

func notify(observers []func(Event), evs []Event) {
	for _, ev := range evs {
		for _, fn := range observers {
			fn(ev)
		}
	}
}

func (q *MemoryQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *MemoryQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *MemoryQueue) Subscribe(fn func(Event)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, fn)
}
