// Package queue implements the single-threaded FIFO worker mailbox
// described by the concurrency model: each service (Finder, Downloader,
// Maestro-adjacent workers) runs its own Queue, processing messages one
// at a time in the order they were posted, with parallelism coming from
// running several queues rather than from posting concurrently within
// one.
package queue

import (
	"context"

	"github.com/quay/zlog"
)

// Handler processes one posted message. An error is logged but does not
// stop the queue: later messages are still processed per the FIFO
// ordering guarantee.
type Handler[T any] func(ctx context.Context, msg T) error

// Queue is a generic single-worker FIFO mailbox. Post is safe to call
// from any goroutine; Run drains the queue on the calling goroutine until
// its context is canceled or Close is called.
type Queue[T any] struct {
	handler Handler[T]
	ch      chan T
	done    chan struct{}
}

// New constructs a Queue with the given buffer size and handler.
func New[T any](bufferSize int, handler Handler[T]) *Queue[T] {
	return &Queue[T]{
		handler: handler,
		ch:      make(chan T, bufferSize),
		done:    make(chan struct{}),
	}
}

// Post enqueues msg. It blocks if the queue's buffer is full.
//
// Across workers, the only ordering guarantee is causal: if a caller
// posts M1 then M2 to the same Queue, M1 is handled before M2; there is
// no cross-queue ordering guarantee.
func (q *Queue[T]) Post(ctx context.Context, msg T) error {
	select {
	case <-q.done:
		return context.Canceled
	default:
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return context.Canceled
	}
}

// Run processes messages one at a time, in FIFO order, until ctx is
// canceled or Close is called. It is meant to be run on a dedicated
// goroutine, one per queue, so that parallelism comes from running
// multiple queues rather than from concurrent handler invocations within
// one.
func (q *Queue[T]) Run(ctx context.Context) {
	for {
		select {
		case msg := <-q.ch:
			if err := q.handler(ctx, msg); err != nil {
				zlog.Debug(ctx).Err(err).Msg("queue handler returned an error")
			}
		case <-ctx.Done():
			return
		case <-q.done:
			return
		}
	}
}

// Close stops accepting new messages and causes Run to return promptly;
// messages still sitting in the buffer are dropped. Close is idempotent.
func (q *Queue[T]) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}
