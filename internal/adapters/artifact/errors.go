package artifact

import "errors"

// Sentinel error kinds for this package. Both are fatal at startup.
var (
	ErrNotFound = errors.New("model artifact not found")
	ErrCorrupt  = errors.New("model artifact corrupt")
)
