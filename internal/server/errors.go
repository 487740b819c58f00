package server

import "errors"

// Transport-level errors
var (
	ErrMissingIdentity = errors.New("missing user identity")
	ErrInvalidPayload  = errors.New("invalid entity payload")
	ErrUnknownFrame    = errors.New("unknown frame type")
)
