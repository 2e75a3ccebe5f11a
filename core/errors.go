package core

import (
	"errors"
	"fmt"
)

// Tagged error kinds shared by all stores and the dataset cache. Callers
// classify outcomes with errors.Is; the concrete messages carry operation
// detail via wrapping.
var (
	// ErrNotFound signals an absent session, memory key or artifact. It is
	// a normal outcome and is never logged as an error by this module.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a duplicate turn sequence number. The stores
	// serialize sequence allocation, so seeing this error indicates an
	// internal invariant violation rather than a recoverable condition.
	ErrConflict = errors.New("conflict: duplicate turn sequence")

	// ErrSourceUnavailable signals that the external record fetch failed or
	// timed out and no usable snapshot could be served.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStorage signals an I/O failure in the storage backend. The module
	// does not attempt recovery for a broken durable store.
	ErrStorage = errors.New("storage failure")

	// ErrTimeout signals that a caller-supplied deadline elapsed while
	// waiting on a shared resource (e.g. an in-flight dataset refresh).
	// Distinct from ErrSourceUnavailable so callers can retry immediately
	// instead of backing off.
	ErrTimeout = errors.New("timeout")
)

// StorageError wraps a backend failure with the failing operation name,
// tagging it as ErrStorage for errors.Is classification.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}

// SourceError tags a fetch failure as ErrSourceUnavailable.
func SourceError(err error) error {
	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}

// TimeoutError tags a deadline expiry as ErrTimeout, preserving the
// context error detail.
func TimeoutError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
}
