// Package flowerr defines flowdb's tagged error surface: every error the
// executor or an operator returns carries one of the Kind values from spec
// §6, so callers can branch on Is(err, KindX) instead of string matching.
package flowerr

import (
	"errors"
	"fmt"
)

// Kind tags the category of a FlowError.
type Kind string

const (
	WouldCycle           Kind = "WouldCycle"
	InvalidPortHandle    Kind = "InvalidPortHandle"
	InvalidNodeHandle    Kind = "InvalidNodeHandle"
	MissingInput         Kind = "MissingInput"
	DuplicateInput       Kind = "DuplicateInput"
	SchemaNotInitialized Kind = "SchemaNotInitialized"
	IncompatibleSchemas  Kind = "IncompatibleSchemas"
	InvalidDatabase      Kind = "InvalidDatabase"
	ChannelDisconnected  Kind = "ChannelDisconnected"
	InternalThreadPanic  Kind = "InternalThreadPanic"
	InternalTypeError    Kind = "InternalTypeError"
	InternalDatabaseError Kind = "InternalDatabaseError"
	InternalError        Kind = "InternalError"
)

// FlowError wraps an underlying cause with a Kind for errors.Is/As
// dispatch, following the teacher's fmt.Errorf("...: %w", err) wrapping
// convention throughout pkg/storage and pkg/worker.
type FlowError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return string(e.Kind)
}

func (e *FlowError) Unwrap() error { return e.Err }

// New builds a FlowError with no message and no wrapped cause.
func New(kind Kind) error { return &FlowError{Kind: kind} }

// Newf builds a FlowError with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &FlowError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a FlowError tagging an existing error with kind.
func Wrap(kind Kind, msg string, err error) error {
	return &FlowError{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err (or any error it wraps) carries kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var fe *FlowError
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a FlowError.
func KindOf(err error) Kind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Fatal reports whether kind always aborts the enclosing epoch per the
// error-handling design (runtime fatal vs. runtime transient vs.
// configuration). Data errors (row-level eval failures) are never
// represented as FlowError; they resolve to Null per SQL semantics instead.
func Fatal(kind Kind) bool {
	switch kind {
	case ChannelDisconnected:
		return false
	default:
		return true
	}
}
