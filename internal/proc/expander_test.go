package proc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/procmacro/internal/config"
	"github.com/leapstack-labs/procmacro/internal/expansion"
	"github.com/leapstack-labs/procmacro/internal/testutil"
	"github.com/leapstack-labs/procmacro/pkg/tt"
)

func newTestExpander(t *testing.T, cfg config.ExpanderConfig) (*Expander, *Server) {
	t.Helper()
	server := NewServer(cfg, testutil.NewTestLogger(t))
	t.Cleanup(func() { _ = server.Close() })
	return NewExpander(server, testutil.NewTestLogger(t)), server
}

func macroCall(name, body string) expansion.MacroCall {
	return expansion.MacroCall{Name: name, Lib: "test", Body: &body}
}

func TestExpander_AsIs(t *testing.T) {
	e, _ := newTestExpander(t, testConfig(t))

	res, err := e.ExpandMacroAsText(context.Background(), macroCall("as_is", "foo(bar, 1)"))
	require.NoError(t, err)
	assert.Equal(t, "foo (bar , 1 )", res.Text)
	assert.Equal(t, []tt.MappedTextRange{
		{SrcOffset: 0, DstOffset: 0, Length: 3},
		{SrcOffset: 3, DstOffset: 4, Length: 4},
		{SrcOffset: 7, DstOffset: 9, Length: 1},
		{SrcOffset: 9, DstOffset: 11, Length: 1},
		{SrcOffset: 10, DstOffset: 13, Length: 1},
	}, res.Ranges.Ranges())
}

func TestExpander_AsIsReparsesToInput(t *testing.T) {
	e, _ := newTestExpander(t, testConfig(t))

	for _, body := range []string{"fn foo() {}", "let y = 1 as u8;", "m!(\"a\" 2 'x)"} {
		res, err := e.ExpandMacroAsText(context.Background(), macroCall("as_is", body))
		require.NoError(t, err)

		want := tt.Parse(body).Subtree
		got := tt.Parse(res.Text).Subtree
		assert.True(t, want.Equal(got), "%q expanded to %q:\n%s", body, res.Text, got.DebugString())
	}
}

func TestNewServer_NonPositiveSettingsDefaulted(t *testing.T) {
	cfg := testConfig(t)
	cfg.PoolSize = -2
	cfg.Timeout = -time.Second
	e, server := newTestExpander(t, cfg)

	assert.Equal(t, config.DefaultPoolSize, server.Stats().Capacity)
	res, err := e.ExpandMacroAsText(context.Background(), macroCall("as_is", "x"))
	require.NoError(t, err, "a negative timeout is replaced by the default")
	assert.Equal(t, "x ", res.Text)
}

func TestExpander_SynthesizedTokens(t *testing.T) {
	e, _ := newTestExpander(t, testConfig(t))

	body := "let x = 1;"
	res, err := e.ExpandMacroAsText(context.Background(), macroCall("wrap", body))
	require.NoError(t, err)
	assert.Equal(t, "fn generated (){let x = 1 ; }", res.Text)

	for _, r := range res.Ranges.Ranges() {
		assert.Equal(t, body[r.SrcOffset:r.SrcEndOffset()], res.Text[r.DstOffset:r.DstEndOffset()])
	}
	_, ok := res.Ranges.MapOffsetFromExpansionToCallBody(0)
	assert.False(t, ok, "generated text is unmapped")
	off, ok := res.Ranges.MapOffsetFromExpansionToCallBody(16)
	require.True(t, ok)
	assert.Equal(t, 0, off, "'let' maps to the start of the call body")
}

func TestExpander_ErrorKinds(t *testing.T) {
	e, _ := newTestExpander(t, testConfig(t))

	tests := []struct {
		name    string
		call    expansion.MacroCall
		want    error
		message string
	}{
		{"missing body", expansion.MacroCall{Name: "as_is", Lib: "test"}, expansion.ErrMacroCallSyntax, ""},
		{"expander error", macroCall("error", "x"), expansion.ErrExpansion, "expansion failed"},
		{"macro panic", macroCall("do_panic", "x"), expansion.ErrExpansion, "boom"},
		{"process crash", macroCall("exit", "x"), expansion.ErrExceptionThrown, ""},
		{"malformed response", macroCall("garbage", "x"), expansion.ErrExceptionThrown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ExpandMacroAsText(context.Background(), tt.call)
			require.ErrorIs(t, err, tt.want)

			var pe *expansion.ProcMacroError
			require.ErrorAs(t, err, &pe)
			var sealed expansion.MacroExpansionError = pe
			assert.NotNil(t, sealed)
			if tt.message != "" {
				assert.Contains(t, pe.Message, tt.message)
			}
		})
	}

	// The pool recovers from crashed workers.
	res, err := e.ExpandMacroAsText(context.Background(), macroCall("as_is", "ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok ", res.Text)
}

func TestExpander_Timeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timeout = 100 * time.Millisecond
	e, server := newTestExpander(t, cfg)

	_, err := e.ExpandMacroAsText(context.Background(), macroCall("sleep", "x"))
	require.ErrorIs(t, err, expansion.ErrTimeout)
	assert.Equal(t, 1, server.Stats().Live, "the timed out worker is kept")
}

func TestExpander_Cancellation(t *testing.T) {
	e, _ := newTestExpander(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := e.ExpandMacroAsText(ctx, macroCall("sleep", "x"))
	require.ErrorIs(t, err, context.Canceled)
	var pe *expansion.ProcMacroError
	assert.False(t, errors.As(err, &pe), "cancellation is not an expansion error")
}

func TestExpander_ExecutableNotFound(t *testing.T) {
	e := NewExpander(nil, nil)
	_, err := e.ExpandMacroAsText(context.Background(), macroCall("as_is", "x"))
	assert.ErrorIs(t, err, expansion.ErrExecutableNotFound)

	assert.Nil(t, TryCreateServer(config.ExpanderConfig{}, nil), "no path configured")
	assert.Nil(t, TryCreateServer(config.ExpanderConfig{Path: filepath.Join(t.TempDir(), "nope")}, nil))
}

func TestExpander_CantRunExpander(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-executable")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	cfg := testConfig(t)
	cfg.Path = path
	server := TryCreateServer(cfg, testutil.NewTestLogger(t))
	require.NotNil(t, server, "existence is enough to create the server")
	t.Cleanup(func() { _ = server.Close() })

	e := NewExpander(server, testutil.NewTestLogger(t))
	for i := 0; i < 2; i++ {
		_, err := e.ExpandMacroAsText(context.Background(), macroCall("as_is", "x"))
		require.ErrorIs(t, err, expansion.ErrCantRunExpander)
	}
	assert.Equal(t, cfg.PoolSize, server.Stats().Available, "failed spawns return their slots")
}

func TestExpander_Concurrent(t *testing.T) {
	e, server := newTestExpander(t, testConfig(t))

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			body := "item" + string(rune('a'+i))
			res, err := e.ExpandMacroAsText(ctx, macroCall("as_is", body))
			if err != nil {
				return err
			}
			assert.Equal(t, body+" ", res.Text)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats := server.Stats()
	assert.LessOrEqual(t, stats.Live, 2)
	assert.Equal(t, 2, stats.Available)
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []expansion.Record
}

func (r *memoryRecorder) RecordExpansion(_ context.Context, rec expansion.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func TestExpander_Recorder(t *testing.T) {
	e, _ := newTestExpander(t, testConfig(t))
	rec := &memoryRecorder{}
	e.WithRecorder(rec)

	_, err := e.ExpandMacroAsText(context.Background(), macroCall("as_is", "abc"))
	require.NoError(t, err)
	_, err = e.ExpandMacroAsText(context.Background(), macroCall("error", "x"))
	require.Error(t, err)

	require.Len(t, rec.records, 2)
	assert.Equal(t, expansion.StatusOK, rec.records[0].Status)
	assert.Equal(t, "as_is", rec.records[0].MacroName)
	assert.Equal(t, 3, rec.records[0].InputBytes)
	assert.Equal(t, 4, rec.records[0].OutputBytes)
	assert.Equal(t, expansion.StatusError, rec.records[1].Status)
	assert.Equal(t, "Expansion", rec.records[1].ErrorKind)
}

func TestExpander_WorkersAreReused(t *testing.T) {
	cfg := testConfig(t)
	cfg.PoolSize = 1
	e, _ := newTestExpander(t, cfg)

	first, err := e.ExpandMacroAsText(context.Background(), macroCall("pid", "x"))
	require.NoError(t, err)
	second, err := e.ExpandMacroAsText(context.Background(), macroCall("pid", "x"))
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
	assert.True(t, first.Ranges.IsEmpty())
}
