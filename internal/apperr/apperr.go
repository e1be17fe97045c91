// Package apperr defines the error taxonomy surfaced by the EOD core.
// Every failure a caller can observe is an *Error carrying a
// human-readable message, optional structured detail, and a kind
// sentinel usable with errors.Is.
package apperr

import "errors"

// Kind sentinels.
var (
	// ErrUpstream marks a failed upstream provider call, including
	// provider-reported error payloads.
	ErrUpstream = errors.New("upstream request failed")

	// ErrNoDataInRange marks a technically successful reconciliation
	// that yielded zero usable days.
	ErrNoDataInRange = errors.New("no data in range")

	// ErrMissingParameter marks a request missing a required start date.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrUnsupportedFormat marks an export format other than json/csv.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Error is the structured error object returned to callers. The JSON
// shape (message + errors) is what the HTTP layer serializes directly.
type Error struct {
	kind    error
	Message string         `json:"message,omitempty"`
	Detail  map[string]any `json:"errors,omitempty"`
}

// New builds an Error of the given kind.
func New(kind error, message string) *Error {
	return &Error{kind: kind, Message: message}
}

// WithDetail builds an Error carrying structured detail, e.g. the
// first-possible-date hint on an empty range.
func WithDetail(kind error, message string, detail map[string]any) *Error {
	return &Error{kind: kind, Message: message, Detail: detail}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.kind.Error()
}

// Unwrap exposes the kind sentinel so errors.Is(err, ErrUpstream) works.
func (e *Error) Unwrap() error { return e.kind }

// Convenience messages preserved from the public API surface.
const (
	MsgNoDataInRange    = "There is no data in your specified range."
	MsgMissingStartDate = "Start date parameter is missing. Please check your API syntax and try again."
	MsgBadFormat        = "Your data format is not supported. Please try again."
)
