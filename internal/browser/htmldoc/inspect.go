package htmldoc

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// TagName implements driver.Inspector.
func (d *Document) TagName(_ context.Context, h driver.Handle) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.live(h)
	if err != nil {
		return "", err
	}
	return strings.ToLower(n.Data), nil
}

// Attribute implements driver.Inspector.
func (d *Document) Attribute(_ context.Context, h driver.Handle, name string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.live(h)
	if err != nil {
		return "", false, err
	}
	v, ok := attr(n, name)
	return v, ok, nil
}

// Property implements driver.Inspector for the properties a static tree can
// answer: value, innerText, textContent, id, className and tagName.
func (d *Document) Property(_ context.Context, h driver.Handle, name string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.live(h)
	if err != nil {
		return "", err
	}
	switch name {
	case "value":
		return d.valueOf(n), nil
	case "innerText":
		if isFormControl(n) {
			return "", nil
		}
		return dom.VisibleText(n), nil
	case "textContent":
		return dom.TextContent(n), nil
	case "id":
		return htmlquery.SelectAttr(n, "id"), nil
	case "className":
		return htmlquery.SelectAttr(n, "class"), nil
	case "tagName":
		return strings.ToUpper(n.Data), nil
	}
	return "", fmt.Errorf("property %q: %w", name, driver.ErrUnsupported)
}

// Text implements driver.Inspector. Form controls have no visible text of
// their own, matching WebDriver semantics.
func (d *Document) Text(_ context.Context, h driver.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.live(h)
	if err != nil {
		return "", err
	}
	if err := d.inject(OpText, n); err != nil {
		return "", err
	}
	if isFormControl(n) {
		return "", nil
	}
	return dom.VisibleText(n), nil
}

// BoundingBox implements driver.Inspector.
func (d *Document) BoundingBox(_ context.Context, h driver.Handle) (schemas.BoundingBox, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.live(h)
	if err != nil {
		return schemas.BoundingBox{}, err
	}
	return d.boxes[n], nil
}

// XPath implements driver.Inspector.
func (d *Document) XPath(_ context.Context, h driver.Handle) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.live(h)
	if err != nil {
		return "", err
	}
	return dom.GenerateUniqueXPath(n), nil
}

// valueOf returns the form state of n, falling back to its markup.
func (d *Document) valueOf(n *html.Node) string {
	if v, ok := d.values[n]; ok {
		return v
	}
	switch strings.ToLower(n.Data) {
	case "textarea":
		return dom.TextContent(n)
	case "select":
		var first, chosen *html.Node
		eachElement(n, func(o *html.Node) {
			if o.Data != "option" {
				return
			}
			if first == nil {
				first = o
			}
			if _, ok := attr(o, "selected"); ok && chosen == nil {
				chosen = o
			}
		})
		if chosen == nil {
			chosen = first
		}
		if chosen == nil {
			return ""
		}
		return optionValue(chosen)
	}
	return htmlquery.SelectAttr(n, "value")
}

func attr(n *html.Node, name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func optionValue(o *html.Node) string {
	if v, ok := attr(o, "value"); ok {
		return v
	}
	return dom.VisibleText(o)
}

func isFormControl(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func isEditable(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "textarea":
		return true
	case "input":
		switch strings.ToLower(htmlquery.SelectAttr(n, "type")) {
		case "", "text", "email", "password", "search", "tel", "url", "number":
			return true
		}
		return false
	}
	v, ok := attr(n, "contenteditable")
	return ok && v != "false"
}

func isDisabled(n *html.Node) bool {
	_, ok := attr(n, "disabled")
	return ok
}
