package driver

import (
	"context"
	"errors"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
)

var (
	// ErrElementNotFound means no element matched within the wait.
	ErrElementNotFound = errors.New("element not found")
	// ErrStaleReference means the handle's node left the document.
	ErrStaleReference = errors.New("stale element reference")
	// ErrActionIntercepted means the element exists but did not receive the
	// action, typically because another node covers it.
	ErrActionIntercepted = errors.New("action intercepted")
	// ErrUnsupported means the driver cannot perform the operation at all.
	ErrUnsupported = errors.New("operation not supported by driver")
	// ErrInvalidLocator is re-exported so callers need only this package.
	ErrInvalidLocator = schemas.ErrInvalidLocator
)

// IsRecoverable reports whether err is a transient page-state failure worth
// retrying. Context cancellation is never recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrStaleReference) ||
		errors.Is(err, ErrActionIntercepted)
}

// SameNode reports whether two handles address the same node.
func SameNode(a, b Handle) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Ref() == b.Ref()
}
