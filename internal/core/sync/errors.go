package sync

import "errors"

// Engine-level errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidKind       = errors.New("unknown record type")
	ErrInvalidResolution = errors.New("unknown resolution policy")
	ErrStoreUnavailable  = errors.New("store unavailable")
)
