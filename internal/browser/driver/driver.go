// Package driver defines the browser capabilities the resolution and
// interaction layers depend on. Implementations live in sibling packages:
// cdp drives a live Chrome over the DevTools protocol, htmldoc operates on a
// parsed static document.
package driver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
)

// Handle is a live reference to one node. Ref is stable for the lifetime of
// the node within one document, so two handles to the same node compare equal
// by Ref.
type Handle interface {
	Ref() string
}

// Finder locates elements.
type Finder interface {
	// FindElements polls until loc matches at least one element or wait
	// elapses, returning ErrElementNotFound on timeout. A non-positive wait
	// evaluates once. Results are in document order.
	FindElements(ctx context.Context, loc schemas.Locator, wait time.Duration) ([]Handle, error)
	// FindWithin evaluates loc once, scoped to parent's subtree.
	FindWithin(ctx context.Context, parent Handle, loc schemas.Locator) ([]Handle, error)
}

// Inspector reads element state.
type Inspector interface {
	TagName(ctx context.Context, h Handle) (string, error)
	// Attribute reports the value and whether the attribute is present.
	Attribute(ctx context.Context, h Handle, name string) (string, bool, error)
	// Property reads a DOM property such as value or innerText as a string.
	Property(ctx context.Context, h Handle, name string) (string, error)
	// Text returns the element's visible text.
	Text(ctx context.Context, h Handle) (string, error)
	BoundingBox(ctx context.Context, h Handle) (schemas.BoundingBox, error)
	// XPath returns a positional path that uniquely addresses h, anchored on
	// the nearest ancestor with an id when there is one.
	XPath(ctx context.Context, h Handle) (string, error)
}

// Actor performs native interactions.
type Actor interface {
	Click(ctx context.Context, h Handle) error
	ScrollIntoView(ctx context.Context, h Handle) error
	// MoveTo moves the pointer to the centre of h.
	MoveTo(ctx context.Context, h Handle) error
	// PointerClick presses and releases the primary button at the current
	// pointer position.
	PointerClick(ctx context.Context) error
	SendKeys(ctx context.Context, h Handle, text string) error
	Clear(ctx context.Context, h Handle) error
	PressKey(ctx context.Context, h Handle, key string, mods schemas.KeyModifier) error
	SelectByText(ctx context.Context, h Handle, text string) error
	SelectByValue(ctx context.Context, h Handle, value string) error
}

// ScriptEvaluator runs a JavaScript function declaration with this bound to
// target. The function's return value is delivered as JSON.
type ScriptEvaluator interface {
	Evaluate(ctx context.Context, fn string, target Handle, args ...any) (json.RawMessage, error)
}

// Driver is the full collaborator used by the resolution engine and the
// interaction executor.
type Driver interface {
	Finder
	Inspector
	Actor
	ScriptEvaluator
}
