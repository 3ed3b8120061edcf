package interaction

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
)

// ErrActionFailed is matched by every error a failed Perform reports.
var ErrActionFailed = errors.New("action failed")

// errEmptyRead lets a read step defer to the next fallback.
var errEmptyRead = errors.New("read returned no text")

// ActionError carries the last error seen before Perform gave up.
type ActionError struct {
	ElementID string
	Action    schemas.ActionKind
	Attempts  int
	Last      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s on element %q failed after %d attempt(s): %v", e.Action, e.ElementID, e.Attempts, e.Last)
}

func (e *ActionError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrActionFailed}
	}
	return []error{ErrActionFailed, e.Last}
}
