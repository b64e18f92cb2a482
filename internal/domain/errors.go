package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrValidation        = errors.New("validation failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTooLarge          = errors.New("file exceeds size limit")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoJob             = errors.New("no job available")
	ErrActiveJob         = errors.New("chain already has an active job")
	ErrLeaseLost         = errors.New("job lease lost")
)

// StageError carries the retry classification of a handler failure.
type StageError struct {
	Stage     JobType
	Retryable bool
	Err       error
}

func (e *StageError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	return fmt.Sprintf("%s (%s): %v", e.Stage, kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func Transient(stage JobType, err error) error {
	return &StageError{Stage: stage, Retryable: true, Err: err}
}

func Permanent(stage JobType, err error) error {
	return &StageError{Stage: stage, Retryable: false, Err: err}
}

// IsRetryable classifies a handler error. Unclassified errors are treated as
// transient; the retry ceiling bounds them.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrTooLarge),
		errors.Is(err, ErrNotFound):
		return false
	}
	return true
}
