package gateway

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindTransient: transport failure or 5xx on a single attempt.
	KindTransient ErrorKind = "transient"
	// KindPermanent: 4xx other than not-found; never retried.
	KindPermanent ErrorKind = "permanent"
	// KindExhausted: transient failures survived every configured attempt.
	KindExhausted ErrorKind = "exhausted"
)

// Error is the flat, kind-discriminated gateway error. HTTPStatus carries the
// upstream status code when one was received (0 for pure transport failures).
type Error struct {
	Kind       ErrorKind
	HTTPStatus int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("gateway %s (http %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
