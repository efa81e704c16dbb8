package regression

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidSpec = errors.New("invalid model spec")
	ErrUnknownKind = errors.New("unknown model kind")
	ErrInference   = errors.New("inference failed")
)
