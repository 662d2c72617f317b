package guard

import (
	"context"
	"sync"
)

// Latest hands values to a write func one at a time, in offer order, on a
// background goroutine. A value offered while a write is running replaces any
// value still waiting, so a burst of offers ends with only the newest written.
type Latest[T any] struct {
	write func(ctx context.Context, v T)

	mu      sync.Mutex
	pending *offer[T]
	idle    chan struct{}
}

type offer[T any] struct {
	ctx   context.Context
	value T
}

func NewLatest[T any](write func(ctx context.Context, v T)) *Latest[T] {
	return &Latest[T]{write: write}
}

// Offer queues v and returns at once. ctx is detached from cancellation before
// it reaches the write func.
func (l *Latest[T]) Offer(ctx context.Context, v T) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = &offer[T]{ctx: context.WithoutCancel(ctx), value: v}
	if l.idle == nil {
		l.idle = make(chan struct{})
		go l.drain(l.idle)
	}
}

// Busy reports whether a write is running or waiting.
func (l *Latest[T]) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idle != nil
}

// Wait blocks until every offered value has been written or ctx is done.
func (l *Latest[T]) Wait(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Latest[T]) drain(idle chan struct{}) {
	for {
		l.mu.Lock()
		next := l.pending
		l.pending = nil
		if next == nil {
			l.idle = nil
			close(idle)
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()
		l.write(next.ctx, next.value)
	}
}
