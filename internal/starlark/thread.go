package starlark

import (
	"log/slog"
	"sync"

	"go.starlark.net/starlark"
)

// DefaultMaxSteps bounds the work of a single macro call.
const DefaultMaxSteps uint64 = 10_000_000

// ThreadPool keeps Starlark threads for reuse across macro calls. Every thread it hands
// out starts with a fresh step budget, and print() output goes to the logger.
type ThreadPool struct {
	mu       sync.Mutex
	free     []*starlark.Thread
	capacity int
	maxSteps uint64
	logger   *slog.Logger
}

// NewThreadPool creates a pool keeping at most capacity idle threads. Zero values
// select the defaults (10 threads, DefaultMaxSteps); a nil logger discards output.
func NewThreadPool(capacity int, maxSteps uint64, logger *slog.Logger) *ThreadPool {
	if capacity <= 0 {
		capacity = 10
	}
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ThreadPool{
		free:     make([]*starlark.Thread, 0, capacity),
		capacity: capacity,
		maxSteps: maxSteps,
		logger:   logger,
	}
}

// Get retrieves an idle thread or creates one. The name shows up in error
// backtraces and print() logs.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	var thread *starlark.Thread
	if n := len(p.free); n > 0 {
		thread = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if thread == nil {
		thread = &starlark.Thread{Print: p.print}
	}
	thread.Name = name
	thread.Steps = 0
	thread.SetMaxExecutionSteps(p.maxSteps)
	return thread
}

// Put returns a thread for reuse. It is dropped when the pool is full.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) < p.capacity {
		thread.Name = ""
		p.free = append(p.free, thread)
	}
}

// Size returns the number of idle threads.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Call runs fn with args on a pooled thread named name. A thread whose call failed is
// not reused: exceeding the step budget cancels it for good.
func (p *ThreadPool) Call(name string, fn starlark.Callable, args starlark.Tuple) (starlark.Value, error) {
	thread := p.Get(name)
	v, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, err
	}
	p.Put(thread)
	return v, nil
}

func (p *ThreadPool) print(thread *starlark.Thread, msg string) {
	p.logger.Debug("starlark print", "thread", thread.Name, "msg", msg)
}
