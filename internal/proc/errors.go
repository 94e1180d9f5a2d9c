// Package proc runs procedural macro expander processes and talks to them over the
// line-delimited JSON protocol.
//
// A Server owns a Pool of long-lived expander Processes. Each Process serves one
// request at a time; the Pool hands processes out to concurrent callers, replacing
// dead ones lazily. The Expander is the entry point for callers: it parses a macro call
// body, sends it to the server and reconstructs text from the expansion.
package proc

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrTimeout is returned when a round trip exceeds the process timeout.
	ErrTimeout = errors.New("expander request timed out")
	// ErrProcessExited is returned when the expander process is no longer running.
	ErrProcessExited = errors.New("the expander process has been killed")
	// ErrPoolClosed is returned by a pool that has been closed.
	ErrPoolClosed = errors.New("expander pool is closed")
)

// ProcessCreationError is returned when an expander process cannot be started.
type ProcessCreationError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ProcessCreationError) Error() string {
	return fmt.Sprintf("failed to start expander %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessCreationError) Unwrap() error {
	return e.Err
}
