package payments

import "errors"

var (
	ErrNotFound       = errors.New("payment not found")
	ErrNotCancellable = errors.New("payment no longer cancellable")
	ErrNotReversible  = errors.New("payment not reversible")
)
