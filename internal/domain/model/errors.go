package model

import "strings"

// ErrorKind classifies request validation failures.
type ErrorKind string

// Validation failure kinds.
const (
	KindMalformed    ErrorKind = "malformed"
	KindMissingField ErrorKind = "missing_field"
	KindInvalidType  ErrorKind = "invalid_type"
)

// ValidationError reports why a request body was rejected. Its message is
// safe to return to clients verbatim.
type ValidationError struct {
	Kind   ErrorKind
	Fields []string // offending fields, if any
	Err    error    // underlying decode/convert error, if any
	msg    string
}

func (e *ValidationError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if len(e.Fields) > 0 {
		return string(e.Kind) + ": " + strings.Join(e.Fields, ", ")
	}
	return string(e.Kind)
}

func (e *ValidationError) Unwrap() error { return e.Err }
