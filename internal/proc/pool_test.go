package proc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/procmacro/internal/testutil"
)

func newTestPool(t *testing.T, limit int) (*Pool, *atomic.Int32) {
	t.Helper()
	cfg := testConfig(t)
	logger := testutil.NewTestLogger(t)
	spawned := &atomic.Int32{}
	pool := NewPool(limit, func() (*Process, error) {
		spawned.Add(1)
		return StartProcess(cfg, logger)
	}, logger)
	t.Cleanup(pool.Close)
	return pool, spawned
}

func TestPool_ReusesFreedProcess(t *testing.T) {
	pool, spawned := newTestPool(t, 2)

	p1, err := pool.Alloc(context.Background())
	require.NoError(t, err)
	pool.Free(p1)

	p2, err := pool.Alloc(context.Background())
	require.NoError(t, err)
	defer pool.Free(p2)

	assert.Same(t, p1, p2, "most recently freed process is reused")
	assert.EqualValues(t, 1, spawned.Load())
}

func TestPool_ReplacesDeadProcess(t *testing.T) {
	pool, spawned := newTestPool(t, 1)

	p1, err := pool.Alloc(context.Background())
	require.NoError(t, err)
	p1.Close()
	pool.Free(p1)

	p2, err := pool.Alloc(context.Background())
	require.NoError(t, err)
	defer pool.Free(p2)

	assert.NotSame(t, p1, p2)
	assert.True(t, p2.Valid())
	assert.EqualValues(t, 2, spawned.Load())
}

func TestPool_AllocBlocksUntilFree(t *testing.T) {
	pool, _ := newTestPool(t, 1)

	p1, err := pool.Alloc(context.Background())
	require.NoError(t, err)

	got := make(chan *Process, 1)
	go func() {
		p, err := pool.Alloc(context.Background())
		if err == nil {
			got <- p
		}
	}()

	select {
	case <-got:
		t.Fatal("alloc returned while the only slot was taken")
	case <-time.After(100 * time.Millisecond):
	}

	pool.Free(p1)
	select {
	case p2 := <-got:
		assert.Same(t, p1, p2)
		pool.Free(p2)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by free")
	}
}

func TestPool_AllocCancelled(t *testing.T) {
	pool, _ := newTestPool(t, 1)

	p1, err := pool.Alloc(context.Background())
	require.NoError(t, err)
	defer pool.Free(p1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Alloc(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_SpawnFailureReturnsEmptySlot(t *testing.T) {
	spawnErr := errors.New("no such file")
	pool := NewPool(2, func() (*Process, error) { return nil, spawnErr }, testutil.NewTestLogger(t))
	defer pool.Close()

	for i := 0; i < 3; i++ {
		_, err := pool.Alloc(context.Background())
		require.ErrorIs(t, err, spawnErr)
	}
	stats := pool.Stats()
	assert.Equal(t, PoolStats{Capacity: 2, Available: 2, Live: 0}, stats)
}

func TestPool_Close(t *testing.T) {
	pool, _ := newTestPool(t, 2)

	held, err := pool.Alloc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Stats().Live)

	pool.Close()
	pool.Close()

	assert.False(t, held.Valid(), "close kills allocated processes")
	_, err = pool.Alloc(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	pool.Free(held)
}

func TestPool_CloseWakesWaiters(t *testing.T) {
	pool, _ := newTestPool(t, 1)

	p1, err := pool.Alloc(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Alloc(context.Background())
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	pool.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not released by close")
	}
	pool.Free(p1)
}

func TestPool_NonPositiveLimit(t *testing.T) {
	for _, limit := range []int{0, -4} {
		pool := NewPool(limit, func() (*Process, error) { return nil, errors.New("unused") }, nil)
		assert.Equal(t, 1, pool.Stats().Capacity)
		assert.Equal(t, 1, pool.Stats().Available)
		pool.Close()
	}
}
