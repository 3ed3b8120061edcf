package cdp

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	cdptypes "github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// -- Inspector --

// TagName implements driver.Inspector.
func (d *Driver) TagName(ctx context.Context, h driver.Handle) (string, error) {
	node, err := d.describe(ctx, h)
	if err != nil {
		return "", err
	}
	return strings.ToLower(node.LocalName), nil
}

// Attribute implements driver.Inspector.
func (d *Driver) Attribute(ctx context.Context, h driver.Handle, name string) (string, bool, error) {
	node, err := d.describe(ctx, h)
	if err != nil {
		return "", false, err
	}
	v, ok := attributeOf(node.Attributes, name)
	return v, ok, nil
}

// attributeOf searches DevTools' flat [name, value, ...] attribute list.
func attributeOf(flat []string, name string) (string, bool) {
	name = strings.ToLower(name)
	for i := 0; i+1 < len(flat); i += 2 {
		if strings.ToLower(flat[i]) == name {
			return flat[i+1], true
		}
	}
	return "", false
}

func (d *Driver) describe(ctx context.Context, h driver.Handle) (*cdptypes.Node, error) {
	id, err := backendID(h)
	if err != nil {
		return nil, err
	}
	var node *cdptypes.Node
	err = d.run(ctx, func(c context.Context) error {
		var err error
		node, err = cdpdom.DescribeNode().WithBackendNodeID(id).Do(c)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return node, nil
}

// Property implements driver.Inspector.
func (d *Driver) Property(ctx context.Context, h driver.Handle, name string) (string, error) {
	var v string
	err := d.callValue(ctx, h, scriptProperty, &v, name)
	return v, err
}

// Text implements driver.Inspector.
func (d *Driver) Text(ctx context.Context, h driver.Handle) (string, error) {
	var v string
	err := d.callValue(ctx, h, scriptText, &v)
	return v, err
}

// BoundingBox implements driver.Inspector using the border box.
func (d *Driver) BoundingBox(ctx context.Context, h driver.Handle) (schemas.BoundingBox, error) {
	id, err := backendID(h)
	if err != nil {
		return schemas.BoundingBox{}, err
	}
	var box schemas.BoundingBox
	err = d.run(ctx, func(c context.Context) error {
		model, err := cdpdom.GetBoxModel().WithBackendNodeID(id).Do(c)
		if err != nil {
			return err
		}
		box, err = quadBox(model.Border)
		return err
	})
	if err != nil {
		return schemas.BoundingBox{}, classify(err)
	}
	return box, nil
}

// quadBox converts a DevTools quad (four x,y corners) to an axis-aligned box.
func quadBox(q cdpdom.Quad) (schemas.BoundingBox, error) {
	if len(q) < 8 {
		return schemas.BoundingBox{}, fmt.Errorf("malformed quad with %d coordinates", len(q))
	}
	minX, minY, maxX, maxY := q[0], q[1], q[0], q[1]
	for i := 2; i+1 < len(q); i += 2 {
		minX, maxX = min(minX, q[i]), max(maxX, q[i])
		minY, maxY = min(minY, q[i+1]), max(maxY, q[i+1])
	}
	return schemas.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, nil
}

// XPath implements driver.Inspector.
func (d *Driver) XPath(ctx context.Context, h driver.Handle) (string, error) {
	var v string
	err := d.callValue(ctx, h, dom.ScriptXPath, &v)
	return v, err
}

// -- Actor --

// Click implements driver.Actor. The element centre must receive pointer
// events; a covering node or an off-screen centre is an interception.
func (d *Driver) Click(ctx context.Context, h driver.Handle) error {
	var status string
	if err := d.callValue(ctx, h, dom.ScriptHitTest, &status); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("click target is %s: %w", status, driver.ErrActionIntercepted)
	}
	id, err := backendID(h)
	if err != nil {
		return err
	}
	return classify(d.run(ctx, func(c context.Context) error {
		p, err := centre(c, id)
		if err != nil {
			return err
		}
		return mouseClick(c, p)
	}))
}

// ScrollIntoView implements driver.Actor.
func (d *Driver) ScrollIntoView(ctx context.Context, h driver.Handle) error {
	id, err := backendID(h)
	if err != nil {
		return err
	}
	return classify(d.run(ctx, func(c context.Context) error {
		return cdpdom.ScrollIntoViewIfNeeded().WithBackendNodeID(id).Do(c)
	}))
}

// MoveTo implements driver.Actor.
func (d *Driver) MoveTo(ctx context.Context, h driver.Handle) error {
	id, err := backendID(h)
	if err != nil {
		return err
	}
	var p point
	err = d.run(ctx, func(c context.Context) error {
		var err error
		if p, err = centre(c, id); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseMoved, p.x, p.y).Do(c)
	})
	if err != nil {
		return classify(err)
	}
	d.mu.Lock()
	d.pointer = &p
	d.mu.Unlock()
	return nil
}

// PointerClick implements driver.Actor.
func (d *Driver) PointerClick(ctx context.Context) error {
	d.mu.Lock()
	p := d.pointer
	d.mu.Unlock()
	if p == nil {
		return fmt.Errorf("pointer has not been positioned: %w", driver.ErrActionIntercepted)
	}
	return classify(d.run(ctx, func(c context.Context) error {
		return mouseClick(c, *p)
	}))
}

func centre(ctx context.Context, id cdptypes.BackendNodeID) (point, error) {
	model, err := cdpdom.GetBoxModel().WithBackendNodeID(id).Do(ctx)
	if err != nil {
		return point{}, err
	}
	box, err := quadBox(model.Border)
	if err != nil {
		return point{}, err
	}
	x, y := box.Center()
	return point{x: x, y: y}, nil
}

func mouseClick(ctx context.Context, p point) error {
	if err := input.DispatchMouseEvent(input.MousePressed, p.x, p.y).WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
		return err
	}
	return input.DispatchMouseEvent(input.MouseReleased, p.x, p.y).WithButton(input.Left).WithClickCount(1).Do(ctx)
}

// SendKeys implements driver.Actor by typing each rune into the focused
// control.
func (d *Driver) SendKeys(ctx context.Context, h driver.Handle, text string) error {
	if err := d.requireEditable(ctx, h); err != nil {
		return err
	}
	id, err := backendID(h)
	if err != nil {
		return err
	}
	return classify(d.run(ctx, func(c context.Context) error {
		if err := cdpdom.Focus().WithBackendNodeID(id).Do(c); err != nil {
			return err
		}
		for _, r := range text {
			for _, ev := range kb.Encode(r) {
				if err := ev.Do(c); err != nil {
					return err
				}
			}
		}
		return nil
	}))
}

func (d *Driver) requireEditable(ctx context.Context, h driver.Handle) error {
	var editable bool
	if err := d.callValue(ctx, h, scriptEditable, &editable); err != nil {
		return err
	}
	if !editable {
		return fmt.Errorf("element does not accept input: %w", driver.ErrActionIntercepted)
	}
	return nil
}

// Clear implements driver.Actor.
func (d *Driver) Clear(ctx context.Context, h driver.Handle) error {
	var cleared bool
	if err := d.callValue(ctx, h, scriptClear, &cleared); err != nil {
		return err
	}
	if !cleared {
		return fmt.Errorf("element cannot be cleared: %w", driver.ErrActionIntercepted)
	}
	return nil
}

// PressKey implements driver.Actor for single characters and the named keys
// in namedKeys.
func (d *Driver) PressKey(ctx context.Context, h driver.Handle, key string, mods schemas.KeyModifier) error {
	def, err := keyFor(key)
	if err != nil {
		return err
	}
	id, err := backendID(h)
	if err != nil {
		return err
	}
	return classify(d.run(ctx, func(c context.Context) error {
		if err := cdpdom.Focus().WithBackendNodeID(id).Do(c); err != nil {
			return err
		}
		for _, ev := range keyEvents(def, mods) {
			if err := ev.Do(c); err != nil {
				return err
			}
		}
		return nil
	}))
}

type keyDef struct {
	key  string
	code string
	vk   int64
	text string
}

var namedKeys = map[string]keyDef{
	"Enter":      {"Enter", "Enter", 13, "\r"},
	"Tab":        {"Tab", "Tab", 9, ""},
	"Backspace":  {"Backspace", "Backspace", 8, ""},
	"Delete":     {"Delete", "Delete", 46, ""},
	"Escape":     {"Escape", "Escape", 27, ""},
	"Home":       {"Home", "Home", 36, ""},
	"End":        {"End", "End", 35, ""},
	"ArrowLeft":  {"ArrowLeft", "ArrowLeft", 37, ""},
	"ArrowUp":    {"ArrowUp", "ArrowUp", 38, ""},
	"ArrowRight": {"ArrowRight", "ArrowRight", 39, ""},
	"ArrowDown":  {"ArrowDown", "ArrowDown", 40, ""},
}

func keyFor(key string) (keyDef, error) {
	if def, ok := namedKeys[key]; ok {
		return def, nil
	}
	runes := []rune(key)
	if len(runes) != 1 {
		return keyDef{}, fmt.Errorf("key %q: %w", key, driver.ErrUnsupported)
	}
	r := runes[0]
	upper := unicode.ToUpper(r)
	def := keyDef{key: key, text: key}
	switch {
	case upper >= 'A' && upper <= 'Z':
		def.code, def.vk = "Key"+string(upper), int64(upper)
	case r >= '0' && r <= '9':
		def.code, def.vk = "Digit"+string(r), int64(r)
	case r == ' ':
		def.code, def.vk = "Space", 32
	}
	return def, nil
}

// keyEvents builds the down/up pair for def. Chorded keys carry no text, and
// Ctrl/Meta+A also issues the editor's selectAll command, which is what makes
// the shortcut work on every platform.
func keyEvents(def keyDef, mods schemas.KeyModifier) []*input.DispatchKeyEventParams {
	chord := mods.Has(schemas.ModCtrl) || mods.Has(schemas.ModMeta) || mods.Has(schemas.ModAlt)

	down := input.DispatchKeyEvent(input.KeyDown).
		WithKey(def.key).
		WithCode(def.code).
		WithWindowsVirtualKeyCode(def.vk).
		WithModifiers(input.Modifier(mods))
	if def.text != "" && !chord {
		down = down.WithText(def.text)
	}
	if chord && strings.EqualFold(def.key, "a") {
		down = down.WithCommands([]string{"selectAll"})
	}

	up := input.DispatchKeyEvent(input.KeyUp).
		WithKey(def.key).
		WithCode(def.code).
		WithWindowsVirtualKeyCode(def.vk).
		WithModifiers(input.Modifier(mods))
	return []*input.DispatchKeyEventParams{down, up}
}

// SelectByText implements driver.Actor.
func (d *Driver) SelectByText(ctx context.Context, h driver.Handle, text string) error {
	return d.selectOption(ctx, h, schemas.SelectByVisibleText, text)
}

// SelectByValue implements driver.Actor.
func (d *Driver) SelectByValue(ctx context.Context, h driver.Handle, value string) error {
	return d.selectOption(ctx, h, schemas.SelectByOptionValue, value)
}

func (d *Driver) selectOption(ctx context.Context, h driver.Handle, by schemas.SelectBy, wanted string) error {
	var matched bool
	if err := d.callValue(ctx, h, dom.ScriptSelectOption, &matched, string(by), wanted); err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("no option with %s %q: %w", by, wanted, driver.ErrElementNotFound)
	}
	return nil
}
