// Package memory provides a bounded in-memory work queue for local
// development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

// Queue is a bounded in-memory queue with context-aware operations.
// Receive drains up to maxDelivery available items into one delivery,
// mimicking the batched deliveries of the real transport.
type Queue struct {
	ch          chan batch.WorkItem
	maxDelivery int
	closeMu     sync.Mutex
	closed      bool
}

// NewQueue constructs a queue with the provided capacity and delivery size.
func NewQueue(capacity, maxDelivery int) *Queue {
	if maxDelivery < 1 {
		maxDelivery = 1
	}
	return &Queue{
		ch:          make(chan batch.WorkItem, capacity),
		maxDelivery: maxDelivery,
	}
}

// Publish pushes a work item or returns if the context ends.
func (q *Queue) Publish(ctx context.Context, item batch.WorkItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("publish canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Receive blocks handing deliveries to handle until the context finishes.
// Failed deliveries are re-enqueued best-effort (at-least-once semantics).
func (q *Queue) Receive(ctx context.Context, handle func(ctx context.Context, items []batch.WorkItem) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-q.ch:
			if !ok {
				return errors.New("queue closed")
			}
			items := q.drainFrom(item)
			if err := handle(ctx, items); err != nil {
				q.requeue(items)
			}
		}
	}
}

func (q *Queue) drainFrom(first batch.WorkItem) []batch.WorkItem {
	items := []batch.WorkItem{first}
	for len(items) < q.maxDelivery {
		select {
		case extra := <-q.ch:
			items = append(items, extra)
		default:
			return items
		}
	}
	return items
}

func (q *Queue) requeue(items []batch.WorkItem) {
	for _, item := range items {
		select {
		case q.ch <- item:
		default:
			// Queue full; the item is dropped. Acceptable for a dev queue.
		}
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// Len reports how many items are waiting; used by tests.
func (q *Queue) Len() int {
	return len(q.ch)
}
