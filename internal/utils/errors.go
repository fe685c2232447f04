package utils

import (
	"errors"
	"fmt"
)

// FaultKind classifies how a submission went wrong.
type FaultKind string

const (
	// FaultNone is the zero value for sessions that have not failed.
	FaultNone FaultKind = ""
	// FaultValidation means the input was rejected before any network call.
	FaultValidation FaultKind = "validation"
	// FaultTransport covers unreachable services, non-2xx replies and undecodable bodies.
	FaultTransport FaultKind = "transport"
	// FaultNormalization is a structurally unexpected payload field. It never fails a session.
	FaultNormalization FaultKind = "normalization"
	// FaultStale is a response for a superseded token. It is dropped silently.
	FaultStale FaultKind = "stale"
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Kind FaultKind
	Op   string
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(kind FaultKind, op, msg string, err error) error {
	return &AppError{Kind: kind, Op: op, Msg: msg, Err: err}
}

// ValidationError reports rejected input. Msg is shown to the user as is.
func ValidationError(op, msg string) error {
	return &AppError{Kind: FaultValidation, Op: op, Msg: msg}
}

// KindOf returns the fault kind carried by err, or FaultTransport for foreign errors.
func KindOf(err error) FaultKind {
	if err == nil {
		return FaultNone
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != FaultNone {
		return appErr.Kind
	}
	return FaultTransport
}

// UserMessage picks the message to show for err: the AppError message when one
// is set, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Msg != "" {
		return appErr.Msg
	}
	return fallback
}
