package htmldoc

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// FindElements implements driver.Finder.
func (d *Document) FindElements(ctx context.Context, loc schemas.Locator, wait time.Duration) ([]driver.Handle, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(wait)
	for {
		d.mu.Lock()
		var (
			nodes []*html.Node
			err   = d.inject(OpFind, nil)
		)
		if err == nil {
			nodes, err = d.evaluate(d.root, loc)
		}
		var out []driver.Handle
		if err == nil && len(nodes) > 0 {
			out = d.handles(nodes)
		}
		d.mu.Unlock()

		if err != nil {
			return nil, err
		}
		if len(out) > 0 {
			return out, nil
		}
		if wait <= 0 || !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", loc.Key(), driver.ErrElementNotFound)
		}

		timer := time.NewTimer(min(d.pollInterval, time.Until(deadline)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// FindWithin implements driver.Finder.
func (d *Document) FindWithin(_ context.Context, parent driver.Handle, loc schemas.Locator) ([]driver.Handle, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.live(parent)
	if err != nil {
		return nil, err
	}
	nodes, err := d.evaluate(p, loc)
	if err != nil {
		return nil, err
	}
	return d.handles(nodes), nil
}

// evaluate returns matches strictly inside scope, in document order.
func (d *Document) evaluate(scope *html.Node, loc schemas.Locator) ([]*html.Node, error) {
	switch loc.Strategy() {
	case schemas.StrategyID:
		var out []*html.Node
		eachElement(scope, func(n *html.Node) {
			if n != scope && htmlquery.SelectAttr(n, "id") == loc.Value() {
				out = append(out, n)
			}
		})
		return out, nil
	case schemas.StrategyCSS:
		return d.queryCSS(scope, loc.Value())
	case schemas.StrategyXPath:
		nodes, err := htmlquery.QueryAll(scope, loc.Value())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", driver.ErrInvalidLocator, err)
		}
		return d.within(scope, nodes), nil
	case schemas.StrategyScript:
		return nil, fmt.Errorf("script locators need a live page: %w", driver.ErrUnsupported)
	case schemas.StrategyAnyOf:
		// A child that cannot run here is skipped; its error only surfaces
		// when every child failed.
		var (
			last error
			ran  bool
		)
		for _, child := range loc.Children() {
			nodes, err := d.evaluate(scope, child)
			if err != nil {
				last = err
				continue
			}
			ran = true
			if len(nodes) > 0 {
				return nodes, nil
			}
		}
		if ran {
			return nil, nil
		}
		return nil, last
	case schemas.StrategyAllOf:
		var result []*html.Node
		for i, child := range loc.Children() {
			nodes, err := d.evaluate(scope, child)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				result = nodes
				continue
			}
			result = intersect(result, nodes)
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", driver.ErrInvalidLocator, loc.Strategy())
}

func (d *Document) queryCSS(scope *html.Node, selector string) ([]*html.Node, error) {
	if scope == nil {
		return nil, nil
	}
	// goquery matches nothing on a malformed selector rather than failing.
	return goquery.NewDocumentFromNode(scope).Find(selector).Nodes, nil
}

// within drops nodes outside scope's subtree (absolute paths escape it) and
// restores document order.
func (d *Document) within(scope *html.Node, nodes []*html.Node) []*html.Node {
	keep := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode && n != scope && isDescendant(n, scope) {
			keep[n] = true
		}
	}
	var out []*html.Node
	eachElement(scope, func(n *html.Node) {
		if keep[n] {
			out = append(out, n)
		}
	})
	return out
}

func intersect(a, b []*html.Node) []*html.Node {
	set := make(map[*html.Node]struct{}, len(b))
	for _, n := range b {
		set[n] = struct{}{}
	}
	var out []*html.Node
	for _, n := range a {
		if _, ok := set[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func isDescendant(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// eachElement visits element nodes under (and including) n in document order.
func eachElement(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		eachElement(c, fn)
	}
}
