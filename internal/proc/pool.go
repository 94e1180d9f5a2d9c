package proc

import (
	"context"
	"log/slog"
	"sync"
)

// Pool hands out up to limit expander processes. Slots are kept on a LIFO stack so the
// most recently used, warm process is reused first; an empty slot is represented by nil
// and filled lazily on allocation.
type Pool struct {
	limit  int
	spawn  func() (*Process, error)
	logger *slog.Logger

	mu       sync.Mutex
	stack    []*Process
	live     map[*Process]struct{}
	closed   bool
	notEmpty chan struct{} // capacity 1; signalled after a push
	done     chan struct{} // closed by Close

	closeOnce sync.Once
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Capacity  int // total slots
	Available int // slots currently on the stack
	Live      int // running processes, allocated or not
}

// NewPool creates a pool of limit slots that starts processes with spawn. A limit
// below one gives a single slot.
func NewPool(limit int, spawn func() (*Process, error), logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit = max(limit, 1)
	p := &Pool{
		limit:    limit,
		spawn:    spawn,
		logger:   logger,
		stack:    make([]*Process, limit),
		live:     make(map[*Process]struct{}),
		notEmpty: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	return p
}

// Alloc takes a slot and returns a running process for it, starting a new one when the
// slot is empty or its process has died. It blocks until a slot is free, ctx is done or
// the pool is closed. If starting a process fails, the slot goes back empty and the
// error is returned.
func (p *Pool) Alloc(ctx context.Context) (*Process, error) {
	proc, err := p.pop(ctx)
	if err != nil {
		return nil, err
	}
	if proc != nil {
		if proc.Valid() {
			return proc, nil
		}
		proc.Close()
		p.untrack(proc)
	}

	proc, err = p.spawn()
	if err != nil {
		p.push(nil)
		return nil, err
	}
	if !p.track(proc) {
		proc.Close()
		p.push(nil)
		return nil, ErrPoolClosed
	}
	return proc, nil
}

// Free returns proc to the pool and wakes one waiter. Processes returned after Close
// are killed.
func (p *Pool) Free(proc *Process) {
	p.push(proc)

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed && proc != nil {
		proc.Close()
	}
}

// Close kills every process started by the pool and fails pending and future
// allocations. It logs an error if some slots were never returned.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		free := len(p.stack)
		live := make([]*Process, 0, len(p.live))
		for proc := range p.live {
			live = append(live, proc)
		}
		p.mu.Unlock()
		close(p.done)

		if free != p.limit {
			p.logger.Error("some expander processes were not freed", "free", free, "limit", p.limit)
		}
		for _, proc := range live {
			proc.Close()
		}
	})
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	live := 0
	for proc := range p.live {
		if proc.Valid() {
			live++
		}
	}
	return PoolStats{Capacity: p.limit, Available: len(p.stack), Live: live}
}

func (p *Pool) pop(ctx context.Context) (*Process, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if n := len(p.stack); n > 0 {
			proc := p.stack[n-1]
			p.stack = p.stack[:n-1]
			if n > 1 {
				p.signal()
			}
			p.mu.Unlock()
			return proc, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notEmpty:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.done:
			return nil, ErrPoolClosed
		}
	}
}

func (p *Pool) push(proc *Process) {
	p.mu.Lock()
	p.stack = append(p.stack, proc)
	p.signal()
	p.mu.Unlock()
}

// signal wakes one waiter. Must be called with mu held.
func (p *Pool) signal() {
	select {
	case p.notEmpty <- struct{}{}:
	default:
	}
}

func (p *Pool) track(proc *Process) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.live[proc] = struct{}{}
	return true
}

func (p *Pool) untrack(proc *Process) {
	p.mu.Lock()
	delete(p.live, proc)
	p.mu.Unlock()
}
