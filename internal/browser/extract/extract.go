// Package extract captures attribute snapshots of live elements.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

const (
	// maxTextLength caps captured text in bytes.
	maxTextLength = 256
	// maxValueLength caps every other captured attribute value in bytes, so
	// inline data: URLs and long hrefs stay cheap to compare.
	maxValueLength = 512
)

// PriorityAttributes are captured in this order when present.
var PriorityAttributes = []string{
	"id", "name", "class", "type", "href", "src", "title", "alt", "placeholder", "role",
	"aria-label", "data-testid", "data-test", "data-test-id", "data-qa", "data-cy",
}

// Extractor reads a fixed attribute list plus text and geometry.
type Extractor struct {
	attributes []string
	now        func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithAttributes replaces the captured attribute list.
func WithAttributes(names ...string) Option {
	return func(e *Extractor) {
		e.attributes = append([]string(nil), names...)
	}
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New returns an Extractor using PriorityAttributes.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		attributes: append([]string(nil), PriorityAttributes...),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds a snapshot of h. Reads that fail are treated as absent, so
// a stale handle yields a sparse (possibly empty) snapshot rather than an error.
func (e *Extractor) Extract(ctx context.Context, drv driver.Inspector, h driver.Handle) schemas.AttributeSnapshot {
	tag, err := drv.TagName(ctx, h)
	if err != nil {
		tag = ""
	}

	attrs := make([]schemas.Attribute, 0, len(e.attributes)+1)
	for _, name := range e.attributes {
		v, ok, err := drv.Attribute(ctx, h, name)
		if err != nil || !ok {
			continue
		}
		if name == "class" {
			v = dom.CollapseWhitespace(v)
		}
		v = dom.TruncateBytes(v, maxValueLength)
		attrs = append(attrs, schemas.Attribute{Name: name, Value: v})
	}

	if text := e.text(ctx, drv, h); text != "" {
		attrs = append(attrs, schemas.Attribute{Name: schemas.TextAttribute, Value: text})
	}

	box, err := drv.BoundingBox(ctx, h)
	if err != nil {
		box = schemas.BoundingBox{}
	}
	return schemas.NewAttributeSnapshot(tag, attrs, box, e.now())
}

// text is the visible text, else the value attribute, else innerText.
func (e *Extractor) text(ctx context.Context, drv driver.Inspector, h driver.Handle) string {
	if t, err := drv.Text(ctx, h); err == nil {
		if t = normalize(t); t != "" {
			return t
		}
	}
	if v, ok, err := drv.Attribute(ctx, h, "value"); err == nil && ok {
		if v = normalize(v); v != "" {
			return v
		}
	}
	if t, err := drv.Property(ctx, h, "innerText"); err == nil {
		return normalize(t)
	}
	return ""
}

func normalize(s string) string {
	return dom.TruncateBytes(strings.TrimSpace(dom.CollapseWhitespace(s)), maxTextLength)
}
