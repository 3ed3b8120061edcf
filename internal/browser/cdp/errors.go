package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// staleMarkers are fragments of DevTools error text that mean the node (or
// the document holding it) is gone.
var staleMarkers = []string{
	"Could not find node",
	"No node with given id",
	"Node is detached",
	"node is detached",
	"Cannot find context with specified id",
	"-32000",
}

// classify maps a failed action primitive onto the driver error taxonomy.
// Context errors and errors already in the taxonomy pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, known := range []error{
		driver.ErrElementNotFound,
		driver.ErrStaleReference,
		driver.ErrActionIntercepted,
		driver.ErrUnsupported,
		driver.ErrInvalidLocator,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if isStale(err) {
		return fmt.Errorf("%w: %v", driver.ErrStaleReference, err)
	}
	return fmt.Errorf("%w: %v", driver.ErrActionIntercepted, err)
}

func isStale(err error) bool {
	msg := err.Error()
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
