package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
)

// ErrResolutionFailed is matched by every error Resolve returns.
var ErrResolutionFailed = errors.New("resolution failed")

// ResolutionError describes an exhausted resolution.
type ResolutionError struct {
	ElementID string
	Primary   schemas.Locator
	Tiers     []Tier
	// Cause is the last underlying error, if any.
	Cause error
}

func (e *ResolutionError) Error() string {
	tiers := make([]string, len(e.Tiers))
	for i, t := range e.Tiers {
		tiers[i] = t.String()
	}
	msg := fmt.Sprintf("resolution failed for element %q (primary %s, tried [%s])",
		e.ElementID, e.Primary.Key(), strings.Join(tiers, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrResolutionFailed}
	}
	return []error{ErrResolutionFailed, e.Cause}
}
