package starlark

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/leapstack-labs/procmacro/internal/testutil"
)

// loadFunc executes src and returns its global function name.
func loadFunc(t *testing.T, src, name string) starlark.Callable {
	t.Helper()
	globals, err := starlark.ExecFile(&starlark.Thread{Name: "load"}, "test.star", src, Predeclared()) //nolint:staticcheck // SA1019: matches the loader
	require.NoError(t, err)
	fn, ok := globals[name].(starlark.Callable)
	require.True(t, ok, "%s is not callable", name)
	return fn
}

func TestThreadPool_GetPut(t *testing.T) {
	pool := NewThreadPool(5, 0, nil)

	thread := pool.Get("derive.unit")
	require.NotNil(t, thread)
	assert.Equal(t, "derive.unit", thread.Name)

	pool.Put(thread)
	assert.Equal(t, 1, pool.Size())
	assert.Empty(t, thread.Name, "idle threads are unnamed")

	again := pool.Get("derive.debug")
	assert.Same(t, thread, again, "idle thread is reused")
	assert.Equal(t, 0, pool.Size())
	assert.Equal(t, "derive.debug", again.Name)
}

func TestThreadPool_Capacity(t *testing.T) {
	pool := NewThreadPool(2, 0, nil)

	threads := []*starlark.Thread{pool.Get("a"), pool.Get("b"), pool.Get("c")}
	for _, thread := range threads {
		pool.Put(thread)
	}
	assert.Equal(t, 2, pool.Size())

	pool = NewThreadPool(0, 0, nil)
	for i := 0; i < 12; i++ {
		pool.Put(&starlark.Thread{})
	}
	assert.Equal(t, 10, pool.Size(), "default capacity")
}

func TestThreadPool_StepBudget(t *testing.T) {
	spin := loadFunc(t, "def spin(n):\n    for i in range(n):\n        pass\n    return n\n", "spin")
	pool := NewThreadPool(1, 1000, nil)

	_, err := pool.Call("lib.spin", spin, starlark.Tuple{starlark.MakeInt(1_000_000)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many steps")

	// The budget is per call, not per thread.
	for i := 0; i < 3; i++ {
		got, err := pool.Call("lib.spin", spin, starlark.Tuple{starlark.MakeInt(100)})
		require.NoError(t, err)
		assert.Equal(t, starlark.MakeInt(100), got)
	}
	assert.Equal(t, 1, pool.Size())
}

func TestThreadPool_PrintIsLogged(t *testing.T) {
	capture, logger := testutil.NewLogCapture()
	fn := loadFunc(t, "def noisy(body):\n    print(\"expanding\", body)\n    return body\n", "noisy")
	pool := NewThreadPool(1, 0, logger)

	_, err := pool.Call("lib.noisy", fn, starlark.Tuple{starlark.String("x")})
	require.NoError(t, err)

	logs := capture.Messages("starlark print")
	require.Len(t, logs, 1)
	assert.Equal(t, "lib.noisy", logs[0].Attrs["thread"])
	assert.Equal(t, "expanding x", logs[0].Attrs["msg"])
}

func TestThreadPool_Concurrent(t *testing.T) {
	fn := loadFunc(t, "def double(x):\n    return x * 2\n", "double")
	pool := NewThreadPool(4, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			got, err := pool.Call("double", fn, starlark.Tuple{starlark.MakeInt(n)})
			assert.NoError(t, err)
			assert.Equal(t, starlark.MakeInt(2*n), got)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, pool.Size(), 4)
}
