package event

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrFull is returned by Enqueue when the normal lane is at capacity.
	ErrFull = errors.New("event: queue full")

	// ErrClosed is returned by Dequeue and Enqueue after Close.
	ErrClosed = errors.New("event: queue closed")
)

// Queue is a multi-producer, single-consumer FIFO with an urgent lane.
// Urgent events are delivered before any queued normal event. Producers
// never block.
type Queue struct {
	mu       sync.Mutex
	urgent   []Event
	normal   []Event
	capacity int
	closed   bool

	// ready holds a token whenever the queue may be non-empty.
	ready chan struct{}
}

// NewQueue creates a queue. capacity bounds the normal lane; zero means unbounded.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Enqueue appends ev to the normal lane.
func (q *Queue) Enqueue(ev Event) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.capacity > 0 && len(q.normal) >= q.capacity {
		q.mu.Unlock()
		return ErrFull
	}
	q.normal = append(q.normal, ev)
	q.mu.Unlock()
	q.signal()
	return nil
}

// EnqueueUrgent places ev ahead of every queued normal event.
// It never fails, even on a closed queue, so a terminate request is not lost.
func (q *Queue) EnqueueUrgent(ev Event) {
	q.mu.Lock()
	q.urgent = append(q.urgent, ev)
	q.mu.Unlock()
	q.signal()
}

// Dequeue blocks until an event is available, ctx is done, or the queue is
// closed and holds no urgent event.
func (q *Queue) Dequeue(ctx context.Context) (Event, error) {
	for {
		if ev, ok, err := q.pop(); ok || err != nil {
			return ev, err
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// TryDequeue returns the next event without blocking.
func (q *Queue) TryDequeue() (Event, bool) {
	ev, ok, _ := q.pop()
	return ev, ok
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.urgent) + len(q.normal)
}

// Close wakes the consumer. Pending urgent events are still delivered;
// normal events are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.normal = nil
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) pop() (Event, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ev Event
	switch {
	case len(q.urgent) > 0:
		ev, q.urgent = q.urgent[0], q.urgent[1:]
	case len(q.normal) > 0:
		ev, q.normal = q.normal[0], q.normal[1:]
	case q.closed:
		return Event{}, false, ErrClosed
	default:
		return Event{}, false, nil
	}

	// leave a token behind so the next Dequeue does not sleep on a non-empty queue
	if len(q.urgent)+len(q.normal) > 0 {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return ev, true, nil
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
