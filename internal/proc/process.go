package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/leapstack-labs/procmacro/internal/config"
	"github.com/leapstack-labs/procmacro/internal/protocol"
)

type result struct {
	resp protocol.Response
	err  error
}

type call struct {
	req   protocol.Request
	reply chan result
}

// Process is one running expander. Its pipes are owned by a dedicated goroutine that
// serves requests handed over by Send; Send calls are mutually exclusive.
type Process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *os.File
	timeout time.Duration
	logger  *slog.Logger

	sem    chan struct{} // held by the Send in progress
	inq    chan call     // unbuffered handoff to run
	exited chan struct{} // closed when the OS process has been reaped
	done   chan struct{} // closed by Close

	closeOnce sync.Once
	waitErr   error
}

// StartProcess launches an expander process and starts serving it.
func StartProcess(cfg config.ExpanderConfig, logger *slog.Logger) (*Process, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.ApplyDefaults()

	logger.Debug("starting expander process", "path", cfg.Path)

	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.EnvMarker+"=true")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ProcessCreationError{Path: cfg.Path, Err: err}
	}
	// A plain pipe instead of StdoutPipe: Wait must not close the read end while
	// a response is still being decoded.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, &ProcessCreationError{Path: cfg.Path, Err: err}
	}
	cmd.Stdout = stdoutW

	p := &Process{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdoutR,
		timeout: cfg.Timeout,
		sem:     make(chan struct{}, 1),
		inq:     make(chan call),
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	cmd.Stderr = &stderrWriter{logger: logger, path: cfg.Path}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, &ProcessCreationError{Path: cfg.Path, Err: err}
	}
	_ = stdoutW.Close()

	p.logger = logger.With("pid", cmd.Process.Pid)

	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
		p.logger.Debug("expander process exited", "error", p.waitErr)
	}()
	go p.run()

	return p, nil
}

// Valid reports whether the process can serve requests.
func (p *Process) Valid() bool {
	select {
	case <-p.done:
		return false
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Send performs one request/response round trip. The handoff to the process and the
// wait for its reply share a single timeout budget. A timeout returns ErrTimeout and a
// cancelled ctx returns ctx.Err(); neither kills the process. Any I/O or decoding failure
// kills the process and is returned.
func (p *Process) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	if !p.Valid() {
		p.Close()
		return nil, ErrProcessExited
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	c := call{req: req, reply: make(chan result, 1)}
	select {
	case p.inq <- c:
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.exited:
		p.Close()
		return nil, ErrProcessExited
	case <-p.done:
		return nil, ErrProcessExited
	}

	select {
	case r := <-c.reply:
		if r.err != nil {
			p.Close()
			return nil, r.err
		}
		return r.resp, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close kills the process. It is safe to call more than once.
func (p *Process) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.kill()
		<-p.exited
		_ = p.stdin.Close()
		_ = p.stdout.Close()
	})
}

func (p *Process) kill() {
	if err := p.cmd.Process.Kill(); err != nil {
		select {
		case <-p.exited:
		default:
			p.logger.Debug("failed to kill expander process", "error", err)
		}
	}
}

// run serves handed-over requests until the process dies, Close is called or a round
// trip fails. The process is killed on the way out.
func (p *Process) run() {
	defer p.kill()

	enc := protocol.NewEncoder(p.stdin)
	dec := protocol.NewDecoder(p.stdout)

	for {
		select {
		case <-p.done:
			return
		case <-p.exited:
			return
		case c := <-p.inq:
			resp, err := writeAndRead(enc, dec, c.req)
			c.reply <- result{resp: resp, err: err}
			if err != nil {
				p.logger.Debug("expander round trip failed", "error", err)
				return
			}
		}
	}
}

func writeAndRead(enc *protocol.Encoder, dec *protocol.Decoder, req protocol.Request) (protocol.Response, error) {
	if err := enc.EncodeRequest(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	resp, err := dec.DecodeResponse()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// stderrWriter forwards the expander's stderr to the logger line by line.
// exec calls Write from a single goroutine.
type stderrWriter struct {
	logger *slog.Logger
	path   string
	buf    []byte
}

func (w *stderrWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Debug("expander stderr", "path", w.path, "line", string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
