package cdrwatch

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// QueueCapacity bounds how many file names may wait for the dispatcher.
const QueueCapacity = 100

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.New("work queue closed")

// WorkQueue is a bounded FIFO of file names between the watch adapter and
// the dispatcher. Push blocks while the queue is full.
type WorkQueue struct {
	items     chan string
	closed    chan struct{}
	closeOnce sync.Once
}

// NewWorkQueue creates a queue holding at most capacity items.
// A non-positive capacity falls back to QueueCapacity.
func NewWorkQueue(capacity int) *WorkQueue {
	if capacity <= 0 {
		capacity = QueueCapacity
	}
	return &WorkQueue{
		items:  make(chan string, capacity),
		closed: make(chan struct{}),
	}
}

// Push appends item, waiting for room when the queue is full.
func (q *WorkQueue) Push(ctx context.Context, item string) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.items <- item:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting items. Items already buffered are still yielded by
// Drain. Close is idempotent.
func (q *WorkQueue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Len returns the number of buffered items.
func (q *WorkQueue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *WorkQueue) Cap() int {
	return cap(q.items)
}

// Drain yields items in FIFO order, blocking while the queue is empty.
// The sequence ends when ctx is done, or once the queue is closed and the
// remaining buffered items have been yielded. It is meant for a single
// consumer.
func (q *WorkQueue) Drain(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			select {
			case item := <-q.items:
				if !yield(item) {
					return
				}
			case <-ctx.Done():
				return
			case <-q.closed:
				for {
					select {
					case item := <-q.items:
						if !yield(item) {
							return
						}
					default:
						return
					}
				}
			}
		}
	}
}
