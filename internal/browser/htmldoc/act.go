package htmldoc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// begin resolves h and consumes any injected fault for op. Callers hold d.mu.
func (d *Document) begin(op Op, h driver.Handle) (*html.Node, error) {
	n, err := d.live(h)
	if err != nil {
		return nil, err
	}
	if err := d.inject(op, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Click implements driver.Actor.
func (d *Document) Click(_ context.Context, h driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpClick, h)
	if err != nil {
		return err
	}
	if isDisabled(n) {
		return fmt.Errorf("element is disabled: %w", driver.ErrActionIntercepted)
	}
	d.activate(n)
	d.record(OpClick, n, "")
	return nil
}

// ScrollIntoView implements driver.Actor.
func (d *Document) ScrollIntoView(_ context.Context, h driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpScroll, h)
	if err != nil {
		return err
	}
	d.record(OpScroll, n, "")
	return nil
}

// MoveTo implements driver.Actor.
func (d *Document) MoveTo(_ context.Context, h driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpMoveTo, h)
	if err != nil {
		return err
	}
	d.pointer = n
	d.record(OpMoveTo, n, "")
	return nil
}

// PointerClick implements driver.Actor.
func (d *Document) PointerClick(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.pointer
	if n == nil || !d.attached(n) {
		return fmt.Errorf("pointer is not over a live element: %w", driver.ErrActionIntercepted)
	}
	if err := d.inject(OpPointerClick, n); err != nil {
		return err
	}
	d.activate(n)
	d.record(OpPointerClick, n, "")
	return nil
}

// SendKeys implements driver.Actor; text is appended to the control's value.
func (d *Document) SendKeys(_ context.Context, h driver.Handle, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpSendKeys, h)
	if err != nil {
		return err
	}
	if !isEditable(n) || isDisabled(n) {
		return fmt.Errorf("<%s> does not accept input: %w", n.Data, driver.ErrActionIntercepted)
	}
	d.values[n] = d.valueOf(n) + text
	delete(d.selected, n)
	d.record(OpSendKeys, n, text)
	return nil
}

// Clear implements driver.Actor.
func (d *Document) Clear(_ context.Context, h driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpClear, h)
	if err != nil {
		return err
	}
	if !isEditable(n) || isDisabled(n) {
		return fmt.Errorf("<%s> cannot be cleared: %w", n.Data, driver.ErrActionIntercepted)
	}
	d.values[n] = ""
	d.record(OpClear, n, "")
	return nil
}

// PressKey implements driver.Actor. Ctrl/Meta+A arms a selection that a
// following Backspace or Delete erases; other keys are journaled only.
func (d *Document) PressKey(_ context.Context, h driver.Handle, key string, mods schemas.KeyModifier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpPressKey, h)
	if err != nil {
		return err
	}
	switch {
	case strings.EqualFold(key, "a") && (mods.Has(schemas.ModCtrl) || mods.Has(schemas.ModMeta)):
		d.selected[n] = true
	case (key == "Backspace" || key == "Delete") && d.selected[n]:
		d.values[n] = ""
		delete(d.selected, n)
	}
	d.record(OpPressKey, n, fmt.Sprintf("%s+%d", key, mods))
	return nil
}

// SelectByText implements driver.Actor.
func (d *Document) SelectByText(_ context.Context, h driver.Handle, text string) error {
	return d.selectOption(h, schemas.SelectByVisibleText, text)
}

// SelectByValue implements driver.Actor.
func (d *Document) SelectByValue(_ context.Context, h driver.Handle, value string) error {
	return d.selectOption(h, schemas.SelectByOptionValue, value)
}

func (d *Document) selectOption(h driver.Handle, by schemas.SelectBy, wanted string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpSelect, h)
	if err != nil {
		return err
	}
	if !strings.EqualFold(n.Data, "select") {
		return fmt.Errorf("<%s> is not a select: %w", n.Data, driver.ErrActionIntercepted)
	}
	opt := findOption(n, by, wanted)
	if opt == nil {
		return fmt.Errorf("no option with %s %q: %w", by, wanted, driver.ErrElementNotFound)
	}
	d.values[n] = optionValue(opt)
	d.record(OpSelect, n, wanted)
	return nil
}

// activate applies the default action of a click.
func (d *Document) activate(n *html.Node) {
	if !strings.EqualFold(n.Data, "option") {
		return
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "select") {
			d.values[p] = optionValue(n)
			return
		}
	}
}

func findOption(sel *html.Node, by schemas.SelectBy, wanted string) *html.Node {
	var found *html.Node
	eachElement(sel, func(o *html.Node) {
		if found != nil || !strings.EqualFold(o.Data, "option") {
			return
		}
		switch by {
		case schemas.SelectByOptionValue:
			if optionValue(o) == wanted {
				found = o
			}
		default:
			if dom.VisibleText(o) == wanted {
				found = o
			}
		}
	})
	return found
}

// Evaluate implements driver.ScriptEvaluator by emulating the dom package's
// scripts. Any other source is reported as unsupported.
func (d *Document) Evaluate(_ context.Context, fn string, target driver.Handle, args ...any) (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.begin(OpScript, target)
	if err != nil {
		return nil, err
	}

	var result any
	switch fn {
	case dom.ScriptClick, dom.ScriptDispatchClick:
		d.activate(n)
		result = true
	case dom.ScriptScrollIntoView, dom.ScriptHover:
		result = true
	case dom.ScriptHitTest:
		result = "ok"
	case dom.ScriptSetValue:
		value, _ := argString(args, 0)
		appendMode, _ := argBool(args, 1)
		if appendMode {
			value = d.valueOf(n) + value
		}
		d.values[n] = value
		result = value
	case dom.ScriptReadText:
		result = d.readText(n)
	case dom.ScriptSelectOption:
		by, _ := argString(args, 0)
		wanted, _ := argString(args, 1)
		opt := findOption(n, schemas.SelectBy(by), wanted)
		if opt != nil {
			d.values[n] = optionValue(opt)
		}
		result = opt != nil
	case dom.ScriptXPath:
		result = dom.GenerateUniqueXPath(n)
	default:
		return nil, fmt.Errorf("script evaluation: %w", driver.ErrUnsupported)
	}

	d.record(OpScript, n, scriptName(fn))
	return json.Marshal(result)
}

func (d *Document) readText(n *html.Node) string {
	if !isFormControl(n) {
		if t := dom.VisibleText(n); t != "" {
			return t
		}
	}
	if v := strings.TrimSpace(d.valueOf(n)); v != "" {
		return v
	}
	return strings.TrimSpace(dom.TextContent(n))
}

func argString(args []any, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

func argBool(args []any, i int) (bool, bool) {
	if i >= len(args) {
		return false, false
	}
	b, ok := args[i].(bool)
	return b, ok
}

var scriptNames = map[string]string{
	dom.ScriptClick:          "click",
	dom.ScriptDispatchClick:  "dispatch_click",
	dom.ScriptScrollIntoView: "scroll_into_view",
	dom.ScriptHover:          "hover",
	dom.ScriptHitTest:        "hit_test",
	dom.ScriptSetValue:       "set_value",
	dom.ScriptReadText:       "read_text",
	dom.ScriptSelectOption:   "select_option",
	dom.ScriptXPath:          "xpath",
}

func scriptName(fn string) string {
	if name, ok := scriptNames[fn]; ok {
		return name
	}
	return "custom"
}

var _ driver.Driver = (*Document)(nil)
