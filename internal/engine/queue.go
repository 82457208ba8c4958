package engine

import (
	"context"
	"sync"
)

// pending is a submitted call waiting for its result.
type pending struct {
	ctx   context.Context
	call  Call
	reply chan reply
}

type reply struct {
	res Result
	err error
}

// callQueue is a thread-safe FIFO queue of submitted calls.
//
// Submit may be called from any goroutine (HTTP handlers) while the
// engine's Run loop dequeues. The queue uses a channel for signaling to
// enable context-aware waiting in the Run loop.
type callQueue struct {
	mu     sync.Mutex
	items  []*pending
	closed bool
	signal chan struct{} // Signals availability (buffered, size 1)
}

func newCallQueue() *callQueue {
	return &callQueue{
		items:  make([]*pending, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue.
// Returns false if the queue is closed.
func (q *callQueue) Enqueue(p *pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, p)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front item without blocking.
// Returns (nil, false) if the queue is empty.
func (q *callQueue) TryDequeue() (*pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	p := q.items[0]
	q.items[0] = nil // release for GC

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return p, true
}

// Wait returns a channel that signals when items may be available.
// The channel is closed by Close.
func (q *callQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *callQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes any waiter. Items already queued
// remain available to TryDequeue.
func (q *callQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Drain removes and returns every queued item.
func (q *callQueue) Drain() []*pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}
