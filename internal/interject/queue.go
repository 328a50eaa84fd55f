// Package interject lets an operator feed messages into a running
// agent loop without ever blocking it: a single-producer,
// single-consumer unbounded FIFO plus a detached reader that pumps an
// input stream into it.
package interject

import "sync"

// Queue is an unbounded FIFO of pending operator messages. Push and
// DrainAll are both non-blocking; the consumer never waits for the
// producer.
type Queue struct {
	mu      sync.Mutex
	pending []string
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a message. Never blocks.
func (q *Queue) Push(msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, msg)
}

// DrainAll removes and returns every currently queued message in
// arrival order. An empty queue yields nil immediately; this call never
// suspends the caller.
func (q *Queue) DrainAll() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	out := q.pending
	q.pending = nil
	return out
}

// Len reports the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
