package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// salientDataAttributes are test hooks stable enough to anchor a locator.
var salientDataAttributes = []string{"data-testid", "data-test", "data-test-id", "data-qa", "data-cy"}

// Synthesize derives a locator for h from its own attributes and ancestry,
// preferring the most readable form that still matches h alone. avoid is
// never returned, since it is the locator that just failed.
func (e *Engine) Synthesize(ctx context.Context, h driver.Handle, snap schemas.AttributeSnapshot, avoid schemas.Locator) (schemas.Locator, error) {
	tag := snap.Tag()
	var candidates []schemas.Locator
	if id, ok := snap.Get("id"); ok && strings.TrimSpace(id) != "" {
		candidates = append(candidates, schemas.ByID(id))
	}
	if tag != "" {
		for _, attr := range salientDataAttributes {
			if v, ok := snap.Get(attr); ok && v != "" {
				candidates = append(candidates, schemas.ByCSS(attributeSelector(tag, attr, v)))
			}
		}
		if name, ok := snap.Get("name"); ok && name != "" {
			candidates = append(candidates, schemas.ByCSS(attributeSelector(tag, "name", name)))
		}
	}

	for _, loc := range candidates {
		if loc.Equal(avoid) {
			continue
		}
		if err := e.verifyUnique(ctx, loc, h); err == nil {
			return loc, nil
		} else if ctx.Err() != nil {
			return schemas.Locator{}, ctx.Err()
		}
	}

	xp, err := e.browser.XPath(ctx, h)
	if err != nil {
		return schemas.Locator{}, fmt.Errorf("derive structural path: %w", err)
	}
	loc := schemas.ByXPath(xp)
	if err := e.verifyUnique(ctx, loc, h); err != nil {
		return schemas.Locator{}, err
	}
	return loc, nil
}

func (e *Engine) verifyUnique(ctx context.Context, loc schemas.Locator, h driver.Handle) error {
	hs, err := e.browser.FindElements(ctx, loc, 0)
	if err != nil {
		return err
	}
	if len(hs) != 1 || !driver.SameNode(hs[0], h) {
		return fmt.Errorf("%s matched %d elements: %w", loc.Key(), len(hs), errNotUnique)
	}
	return nil
}

// attributeSelector builds tag[attr="value"] with the value escaped as a CSS string.
func attributeSelector(tag, attr, value string) string {
	var b strings.Builder
	b.WriteString(tag)
	b.WriteByte('[')
	b.WriteString(attr)
	b.WriteString(`="`)
	for _, r := range value {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString(`"]`)
	return b.String()
}
