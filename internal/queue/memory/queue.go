// Package memory provides the in-memory work queue feeding the crawl loop.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

// Queue is a bounded in-memory queue with context-aware operations. The
// crawl plan is enqueued up front and drained by a single worker, so the
// capacity should cover the whole target list.
type Queue struct {
	ch      chan crawler.WorkItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan crawler.WorkItem, capacity),
	}
}

// Enqueue pushes a work item into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item crawler.WorkItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next work item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (crawler.WorkItem, error) {
	select {
	case <-ctx.Done():
		return crawler.WorkItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return crawler.WorkItem{}, crawler.ErrQueueClosed
		}
		return item, nil
	}
}

// Close closes the underlying channel; pending items stay dequeueable.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
