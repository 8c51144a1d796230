// Package simerr defines the error kinds shared across the simulation core.
package simerr

import "fmt"

// Kind identifies the family an error belongs to. Kinds are compared
// directly via SimError.Is so callers can branch on errors.Is against the
// sentinel values below regardless of message text.
type Kind string

const (
	KindUnknownDocument Kind = "unknown_document"
	KindUnknownOffice   Kind = "unknown_office"
	KindShuttingDown    Kind = "shutting_down"
	KindCancelled       Kind = "cancelled"
	KindUnderlying      Kind = "underlying"
	KindConfigInvalid   Kind = "config_invalid"
)

// SimError is the unified error type for the simulation core.
type SimError struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SimError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *SimError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SimError of the same Kind, so callers can
// write errors.Is(err, simerr.ErrShuttingDown) against the sentinel values
// below even when the message differs.
func (e *SimError) Is(target error) bool {
	other, ok := target.(*SimError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel values for errors.Is comparisons. Construct a fresh *SimError with
// contextual detail via the New* helpers instead of returning these directly
// where a name, list, or cause needs to travel with the error.
var (
	ErrUnknownDocument = &SimError{Kind: KindUnknownDocument, Message: "unknown document"}
	ErrUnknownOffice   = &SimError{Kind: KindUnknownOffice, Message: "unknown office"}
	ErrShuttingDown    = &SimError{Kind: KindShuttingDown, Message: "office is shutting down"}
	ErrCancelled       = &SimError{Kind: KindCancelled, Message: "cancelled"}
	ErrUnderlying      = &SimError{Kind: KindUnderlying, Message: "underlying failure"}
	ErrConfigInvalid   = &SimError{Kind: KindConfigInvalid, Message: "invalid configuration"}
)

// NewUnknownDocument builds an UnknownDocument error naming the missing document.
func NewUnknownDocument(name string) *SimError {
	return &SimError{Kind: KindUnknownDocument, Message: "unknown document: " + name}
}

// NewUnknownOffice builds an UnknownOffice error naming the missing office.
func NewUnknownOffice(name string) *SimError {
	return &SimError{Kind: KindUnknownOffice, Message: "unknown office: " + name}
}

// NewCancelled builds a Cancelled error with contextual detail.
func NewCancelled(reason string) *SimError {
	return &SimError{Kind: KindCancelled, Message: "cancelled: " + reason}
}

// NewUnderlying wraps an unexpected failure from a user-supplied callable or
// the event sink so it can propagate to the journey without losing its cause.
func NewUnderlying(cause error) *SimError {
	return &SimError{Kind: KindUnderlying, Message: "unexpected failure", Cause: cause}
}

// NewConfigInvalid builds a ConfigInvalid error describing what failed validation.
func NewConfigInvalid(reason string) *SimError {
	return &SimError{Kind: KindConfigInvalid, Message: "invalid configuration: " + reason}
}
