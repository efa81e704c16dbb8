package api

import (
	"errors"
	"net/http"
)

// Sentinel kinds for API errors. Every failure a handler reports carries
// exactly one of them.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrInternal        = errors.New("internal error")
)

// Error ties a failure to the operation that produced it and its kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind classifies err as kind for op.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// statusFor maps an error kind to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text placed in the error envelope. Client errors echo
// the underlying cause; everything else is reported as "An error occurred".
func publicMessage(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "An error occurred: " + err.Error()
	}

	cause := apiErr.Kind.Error()
	if apiErr.Err != nil {
		cause = apiErr.Err.Error()
	}

	switch {
	case errors.Is(apiErr.Kind, ErrBadRequest):
		return cause
	case errors.Is(apiErr.Kind, ErrPayloadTooLarge):
		return "Invalid input data: request body too large"
	default:
		return "An error occurred: " + cause
	}
}
