package client

import "errors"

var (
	// ErrUnavailable marks transient failures: the server is unreachable,
	// overloaded or the call timed out. Callers retry later.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest is a permanent refusal of the request as a whole.
	ErrBadRequest = errors.New("bad request")
)
