package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"main/internal/model"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded, non-blocking fill-event queue. Each connection
// supervisor owns exactly one, so consumption stays FIFO per source while
// different sources interleave freely.
type Queue struct {
	ch     chan model.FillEvent
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.FillEvent, capacity)}
}

// TryPublish enqueues a fill without blocking.
func (q *Queue) TryPublish(fill model.FillEvent) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- fill:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new fills.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes fills until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(model.FillEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case fill, ok := <-q.ch:
			if !ok {
				return
			}
			handler(fill)
		}
	}
}
