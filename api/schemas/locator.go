package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Strategy names how a Locator finds elements.
type Strategy string

const (
	StrategyID     Strategy = "id"
	StrategyCSS    Strategy = "css"
	StrategyXPath  Strategy = "xpath"
	StrategyScript Strategy = "script"
	// StrategyAnyOf resolves to the first child that yields at least one element.
	StrategyAnyOf Strategy = "any"
	// StrategyAllOf resolves to the elements every child yields.
	StrategyAllOf Strategy = "all"
)

// ErrInvalidLocator is returned by Validate for malformed locators.
var ErrInvalidLocator = errors.New("invalid locator")

// Locator is an immutable description of how to find elements on a page.
// The zero value is the empty locator; use the By* and *Of builders.
type Locator struct {
	strategy Strategy
	value    string
	children []Locator
}

// ByID matches the element whose id attribute equals id.
func ByID(id string) Locator { return Locator{strategy: StrategyID, value: id} }

// ByCSS matches elements with a CSS selector.
func ByCSS(selector string) Locator { return Locator{strategy: StrategyCSS, value: selector} }

// ByXPath matches elements with an XPath expression.
func ByXPath(expr string) Locator { return Locator{strategy: StrategyXPath, value: expr} }

// ByScript matches the element(s) returned by a JavaScript expression.
func ByScript(expr string) Locator { return Locator{strategy: StrategyScript, value: expr} }

// AnyOf builds a composite-or locator.
func AnyOf(locs ...Locator) Locator {
	return Locator{strategy: StrategyAnyOf, children: append([]Locator(nil), locs...)}
}

// AllOf builds a composite-and locator.
func AllOf(locs ...Locator) Locator {
	return Locator{strategy: StrategyAllOf, children: append([]Locator(nil), locs...)}
}

func (l Locator) Strategy() Strategy { return l.strategy }
func (l Locator) Value() string      { return l.value }

// Children returns a copy of a composite locator's children.
func (l Locator) Children() []Locator {
	return append([]Locator(nil), l.children...)
}

func (l Locator) IsZero() bool { return l.strategy == "" }

func (l Locator) IsComposite() bool {
	return l.strategy == StrategyAnyOf || l.strategy == StrategyAllOf
}

// Equal reports structural equality.
func (l Locator) Equal(o Locator) bool {
	if l.strategy != o.strategy || l.value != o.value || len(l.children) != len(o.children) {
		return false
	}
	for i := range l.children {
		if !l.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// Key is a canonical rendering; two locators are Equal iff their Keys match.
func (l Locator) Key() string {
	var b strings.Builder
	l.writeKey(&b)
	return b.String()
}

func (l Locator) writeKey(b *strings.Builder) {
	if l.IsZero() {
		b.WriteString("none")
		return
	}
	b.WriteString(string(l.strategy))
	b.WriteByte('(')
	if l.IsComposite() {
		for i, c := range l.children {
			if i > 0 {
				b.WriteByte(',')
			}
			c.writeKey(b)
		}
	} else {
		// Quote so that values containing separators stay unambiguous.
		fmt.Fprintf(b, "%q", l.value)
	}
	b.WriteByte(')')
}

func (l Locator) String() string { return l.Key() }

// Validate checks that the locator can be evaluated.
func (l Locator) Validate() error {
	switch l.strategy {
	case StrategyID, StrategyCSS, StrategyXPath, StrategyScript:
		if strings.TrimSpace(l.value) == "" {
			return fmt.Errorf("%w: empty %s value", ErrInvalidLocator, l.strategy)
		}
	case StrategyAnyOf, StrategyAllOf:
		if len(l.children) == 0 {
			return fmt.Errorf("%w: %s without children", ErrInvalidLocator, l.strategy)
		}
		for _, c := range l.children {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	case "":
		return fmt.Errorf("%w: empty locator", ErrInvalidLocator)
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidLocator, l.strategy)
	}
	return nil
}

type locatorJSON struct {
	Strategy Strategy  `json:"strategy"`
	Value    string    `json:"value,omitempty"`
	Children []Locator `json:"children,omitempty"`
}

func (l Locator) MarshalJSON() ([]byte, error) {
	return json.Marshal(locatorJSON{Strategy: l.strategy, Value: l.value, Children: l.children})
}

func (l *Locator) UnmarshalJSON(data []byte) error {
	var raw locatorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Locator{strategy: raw.Strategy, value: raw.Value, children: raw.Children}
	return l.Validate()
}
