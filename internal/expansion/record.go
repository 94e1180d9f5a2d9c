package expansion

import (
	"context"
	"errors"
	"time"
)

// Expansion statuses stored in records.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Record describes the outcome of one expansion attempt.
type Record struct {
	MacroName   string
	Lib         string
	Status      string
	ErrorKind   string
	Message     string
	InputBytes  int
	OutputBytes int
	Duration    time.Duration
	StartedAt   time.Time
}

// Recorder persists expansion records. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordExpansion(ctx context.Context, rec Record) error
}

// NewRecord builds a record for call from the outcome of an expansion.
func NewRecord(call MacroCall, res *Result, err error, startedAt time.Time) Record {
	rec := Record{
		MacroName: call.Name,
		Lib:       call.Lib,
		Status:    StatusOK,
		Duration:  time.Since(startedAt),
		StartedAt: startedAt,
	}
	if call.Body != nil {
		rec.InputBytes = len(*call.Body)
	}
	if res != nil {
		rec.OutputBytes = len(res.Text)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rec.Status = StatusCancelled
		rec.Message = err.Error()
	default:
		rec.Status = StatusError
		rec.ErrorKind = KindOf(err)
		rec.Message = err.Error()
	}
	return rec
}
