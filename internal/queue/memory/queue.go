// Package memory provides the in-process crawl frontier.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

// ErrQueueClosed is returned once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO with context-aware operations. Enqueue never
// blocks, so a worker can add the requests it discovers without waiting on
// its peers.
type Queue struct {
	mu     sync.Mutex
	items  []crawler.Request
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

var _ crawler.Frontier = (*Queue)(nil)

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue appends req unless the context has ended or the queue is closed.
func (q *Queue) Enqueue(ctx context.Context, req crawler.Request) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, req)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Dequeue pops the oldest request, blocking until one is available. Requests
// left at close time are still handed out before ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (crawler.Request, error) {
	for {
		if err := ctx.Err(); err != nil {
			return crawler.Request{}, fmt.Errorf("dequeue canceled: %w", err)
		}
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = crawler.Request{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return req, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return crawler.Request{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return crawler.Request{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.ready:
		case <-q.done:
		}
	}
}

// Len reports the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes every waiting consumer. Closing twice is safe.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
