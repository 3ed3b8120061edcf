// Package htmldoc implements the driver contract over a parsed, static HTML
// document. It has no layout engine: geometry is whatever SetBox assigned,
// and scripts run only through Go emulations of the dom package's snippets.
// Failure hooks make it the harness for resolver and executor scenarios.
package htmldoc

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// Op names a driver primitive for failure injection and the journal.
type Op string

const (
	OpFind         Op = "find"
	OpClick        Op = "click"
	OpScroll       Op = "scroll"
	OpMoveTo       Op = "move_to"
	OpPointerClick Op = "pointer_click"
	OpSendKeys     Op = "send_keys"
	OpClear        Op = "clear"
	OpPressKey     Op = "press_key"
	OpSelect       Op = "select"
	OpScript       Op = "script"
	OpText         Op = "text"
)

// Entry is one performed primitive.
type Entry struct {
	Op     Op
	Ref    string
	Detail string
}

type fault struct {
	op        Op
	selector  string // CSS; empty matches every node
	err       error
	remaining int // negative means unlimited
}

// Document is a concurrency-safe static DOM.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
	gen  uint64
	next uint64

	refs  map[*html.Node]string
	nodes map[string]*html.Node

	values   map[*html.Node]string
	boxes    map[*html.Node]schemas.BoundingBox
	selected map[*html.Node]bool // select-all state armed by Ctrl+A
	pointer  *html.Node

	faults  []*fault
	journal []Entry

	pollInterval time.Duration
}

// Option configures a Document.
type Option func(*Document)

// WithPollInterval sets how often FindElements re-evaluates while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(doc *Document) {
		if d > 0 {
			doc.pollInterval = d
		}
	}
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	doc := &Document{pollInterval: 20 * time.Millisecond}
	for _, opt := range opts {
		opt(doc)
	}
	doc.reset(root)
	return doc, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Load replaces the document, as a navigation would. Every handle issued
// before Load becomes stale.
func (d *Document) Load(s string) error {
	root, err := htmlquery.Parse(strings.NewReader(s))
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset(root)
	return nil
}

func (d *Document) reset(root *html.Node) {
	d.root = root
	d.gen++
	d.refs = make(map[*html.Node]string)
	d.nodes = make(map[string]*html.Node)
	d.values = make(map[*html.Node]string)
	d.boxes = make(map[*html.Node]schemas.BoundingBox)
	d.selected = make(map[*html.Node]bool)
	d.pointer = nil
}

// Mutate runs fn against the live tree. Handles to nodes that remain
// attached stay valid; detached nodes go stale.
func (d *Document) Mutate(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// SetBox assigns geometry to every node matching the CSS selector.
func (d *Document) SetBox(selector string, box schemas.BoundingBox) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes, err := d.queryCSS(d.root, selector)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("set box %q: %w", selector, driver.ErrElementNotFound)
	}
	for _, n := range nodes {
		d.boxes[n] = box
	}
	return nil
}

// Fail makes the next times invocations of op on nodes matching selector
// return err. A negative times fails forever.
func (d *Document) Fail(op Op, selector string, err error, times int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = append(d.faults, &fault{op: op, selector: selector, err: err, remaining: times})
}

// ClearFaults removes all pending failure injections.
func (d *Document) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = nil
}

// Journal returns the primitives performed so far, in order.
func (d *Document) Journal() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Entry(nil), d.journal...)
}

// Value returns the current form value of the first node matching selector.
func (d *Document) Value(selector string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes, err := d.queryCSS(d.root, selector)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("value %q: %w", selector, driver.ErrElementNotFound)
	}
	return d.valueOf(nodes[0]), nil
}

// HTML renders the current tree.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return htmlquery.OutputHTML(d.root, true)
}

// -- internals; callers hold d.mu --

func (d *Document) refOf(n *html.Node) string {
	if ref, ok := d.refs[n]; ok {
		return ref
	}
	d.next++
	ref := fmt.Sprintf("%d.%d", d.gen, d.next)
	d.refs[n] = ref
	d.nodes[ref] = n
	return ref
}

func (d *Document) handles(nodes []*html.Node) []driver.Handle {
	out := make([]driver.Handle, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &handle{ref: d.refOf(n), gen: d.gen})
	}
	return out
}

// live maps a handle back to its node, or reports ErrStaleReference.
func (d *Document) live(h driver.Handle) (*html.Node, error) {
	hh, ok := h.(*handle)
	if !ok || hh == nil {
		return nil, fmt.Errorf("foreign handle %T: %w", h, driver.ErrStaleReference)
	}
	if hh.gen != d.gen {
		return nil, fmt.Errorf("node %s belongs to a previous document: %w", hh.ref, driver.ErrStaleReference)
	}
	n, ok := d.nodes[hh.ref]
	if !ok || !d.attached(n) {
		return nil, fmt.Errorf("node %s is detached: %w", hh.ref, driver.ErrStaleReference)
	}
	return n, nil
}

func (d *Document) attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// inject consumes a matching fault for op on n, if any.
func (d *Document) inject(op Op, n *html.Node) error {
	for i, f := range d.faults {
		if f.op != op || f.remaining == 0 {
			continue
		}
		if f.selector != "" && !d.matches(n, f.selector) {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
			if f.remaining == 0 {
				d.faults = append(d.faults[:i], d.faults[i+1:]...)
			}
		}
		return f.err
	}
	return nil
}

func (d *Document) matches(n *html.Node, selector string) bool {
	if n == nil {
		return false
	}
	nodes, err := d.queryCSS(d.root, selector)
	if err != nil {
		return false
	}
	for _, m := range nodes {
		if m == n {
			return true
		}
	}
	return false
}

func (d *Document) record(op Op, n *html.Node, detail string) {
	ref := ""
	if n != nil {
		ref = d.refOf(n)
	}
	d.journal = append(d.journal, Entry{Op: op, Ref: ref, Detail: detail})
}

type handle struct {
	ref string
	gen uint64
}

func (h *handle) Ref() string    { return h.ref }
func (h *handle) String() string { return "htmldoc:" + h.ref }
