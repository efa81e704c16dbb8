package frame

import "errors"

// Sentinel error kinds for this package.
var (
	ErrShape           = errors.New("frame shape invalid")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrMissingColumn   = errors.New("missing column")
)
