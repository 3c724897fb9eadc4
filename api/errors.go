package api

import (
	"errors"
	"fmt"
)

// ErrOptionTooLarge is returned by SaveOption when the serialized value
// exceeds the option size ceiling. The caller is expected to prune its
// payload and retry once.
var ErrOptionTooLarge = errors.New("api: option value exceeds size limit")

// ErrSuperseded is returned when a newer request for the same logical
// resource was issued while this one was in flight. The stale result has
// been discarded, not applied.
var ErrSuperseded = errors.New("api: request superseded by a newer one")

// TransportError wraps request-level failures: connection errors,
// timeouts, unexpected HTTP statuses. The wiki never saw or never
// answered the request properly.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a rejection from the wiki itself: the request arrived and
// was answered with an error code.
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: wiki rejected request: %s: %s", e.Code, e.Info)
}

// IsTransport reports whether err is a transport-level failure rather
// than an API rejection. Callers surface the two differently.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
