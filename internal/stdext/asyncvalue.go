// Package stdext holds small concurrency helpers shared across packages.
package stdext

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Result is the outcome of one AsyncValue update.
type Result[T any] struct {
	Value T
	Err   error
}

type pendingUpdate[T any] struct {
	ctx  context.Context
	fn   func(context.Context, T) (T, error)
	done chan Result[T]
}

// AsyncValue holds a value that is replaced by queued updates. Updates run one at a
// time in submission order, each seeing the value left by the previous one. Reading
// the current value never blocks on a running update.
type AsyncValue[T any] struct {
	mu      sync.Mutex
	current T
	queue   []pendingUpdate[T]
	running bool
	logger  *slog.Logger
}

// NewAsyncValue creates an AsyncValue holding initial.
func NewAsyncValue[T any](initial T, logger *slog.Logger) *AsyncValue[T] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AsyncValue[T]{current: initial, logger: logger}
}

// Get returns the current value.
func (v *AsyncValue[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// UpdateAsync queues fn and returns a channel that receives its outcome. When fn fails
// the value is left unchanged. Failures are logged unless they are cancellations.
// An update whose ctx is done before it starts is skipped with ctx.Err().
func (v *AsyncValue[T]) UpdateAsync(ctx context.Context, fn func(context.Context, T) (T, error)) <-chan Result[T] {
	done := make(chan Result[T], 1)

	v.mu.Lock()
	v.queue = append(v.queue, pendingUpdate[T]{ctx: ctx, fn: fn, done: done})
	start := !v.running
	v.running = true
	v.mu.Unlock()

	if start {
		go v.process()
	}
	return done
}

// UpdateSync queues fn behind any pending updates and waits for it to apply.
func (v *AsyncValue[T]) UpdateSync(fn func(T) T) T {
	res := <-v.UpdateAsync(context.Background(), func(_ context.Context, cur T) (T, error) {
		return fn(cur), nil
	})
	return res.Value
}

func (v *AsyncValue[T]) process() {
	for {
		v.mu.Lock()
		if len(v.queue) == 0 {
			v.running = false
			v.mu.Unlock()
			return
		}
		next := v.queue[0]
		v.queue = v.queue[1:]
		cur := v.current
		v.mu.Unlock()

		next.done <- v.apply(next, cur)
	}
}

func (v *AsyncValue[T]) apply(u pendingUpdate[T], cur T) Result[T] {
	if err := u.ctx.Err(); err != nil {
		return Result[T]{Value: cur, Err: err}
	}

	value, err := u.fn(u.ctx, cur)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			v.logger.Error("async value update failed", "error", err)
		}
		return Result[T]{Value: cur, Err: err}
	}

	v.mu.Lock()
	v.current = value
	v.mu.Unlock()
	return Result[T]{Value: value}
}
