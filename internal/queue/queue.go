package queue

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidCapacity = errors.New("queue capacity must be positive")
)

// Option configures a Queue
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock sets the clock used for pop deadlines
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Queue is a bounded FIFO safe for one or more producers and consumers.
// Push blocks while the queue is full, PopContext blocks until an item
// arrives or the deadline passes.
type Queue[T any] struct {
	items chan T
	clock clockwork.Clock
}

// New creates a queue that holds at most capacity items
func New[T any](capacity int, opts ...Option) (*Queue[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	o := &options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(o)
	}

	return &Queue[T]{
		items: make(chan T, capacity),
		clock: o.clock,
	}, nil
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

// Push appends value, waiting for room if the queue is full.
// It returns the context error if ctx ends first.
func (q *Queue[T]) Push(ctx context.Context, value T) error {
	select {
	case q.items <- value:
		return nil
	default:
	}

	select {
	case q.items <- value:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PopContext removes the oldest item. ok is false when deadline passed
// with the queue still empty or ctx ended first.
func (q *Queue[T]) PopContext(ctx context.Context, deadline time.Time) (value T, ok bool) {
	// drain what is already there even if the deadline is behind us
	select {
	case value = <-q.items:
		return value, true
	default:
	}

	wait := deadline.Sub(q.clock.Now())
	if wait <= 0 {
		return value, false
	}

	timer := q.clock.NewTimer(wait)
	defer timer.Stop()

	select {
	case value = <-q.items:
		return value, true
	case <-timer.Chan():
		return value, false
	case <-ctx.Done():
		return value, false
	}
}
