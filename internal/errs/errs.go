// Package errs classifies errors into the kinds SPEC_FULL §7 names. No
// other package in the indexer imports it; scheduler tasks and adapters
// return plain wrapped errors.
package errs

import "github.com/pkg/errors"

// Kind is the coarse category a chain-adapter or store error falls into.
type Kind int

const (
	// KindTransientRPC covers a dropped connection, a timeout, or a node
	// temporarily behind.
	KindTransientRPC Kind = iota + 1
	// KindPermanentRPC covers a malformed response the adapter can't
	// recover from by retrying.
	KindPermanentRPC
	// KindWarehouseWrite covers a failed batch commit.
	KindWarehouseWrite
	// KindConfigStore covers a failed config-store read/write/CAS.
	KindConfigStore
	// KindCancelled covers context cancellation from an abort signal.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransientRPC:
		return "transient_rpc"
	case KindPermanentRPC:
		return "permanent_rpc"
	case KindWarehouseWrite:
		return "warehouse_write"
	case KindConfigStore:
		return "config_store"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// kindError pairs a Kind with a wrapped cause, built with pkg/errors so
// stack traces survive the classification.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }

// Wrap classifies cause as kind, attaching a stack trace via pkg/errors.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.Wrap(cause, msg)}
}

// ClassOf extracts the Kind from an error built with Wrap, or 0 if err
// wasn't classified.
func ClassOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return 0
}

// IsTransient reports whether err was classified as KindTransientRPC.
func IsTransient(err error) bool {
	return ClassOf(err) == KindTransientRPC
}
