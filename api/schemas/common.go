package schemas

import "math"

// KeyModifier represents keyboard modifiers (Ctrl, Alt, Shift, Meta).
// These values correspond directly to the CDP input.DispatchKeyEvent modifiers bitfield.
type KeyModifier int

const (
	ModNone  KeyModifier = 0
	ModAlt   KeyModifier = 1 // Corresponds to CDP modifier 1
	ModCtrl  KeyModifier = 2 // Corresponds to CDP modifier 2
	ModMeta  KeyModifier = 4 // Corresponds to CDP modifier 4
	ModShift KeyModifier = 8 // Corresponds to CDP modifier 8
)

// Has reports whether all bits of m are set.
func (k KeyModifier) Has(m KeyModifier) bool {
	return k&m == m
}

// BoundingBox is an element's rectangle in CSS pixels, relative to the viewport.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero is true for the box reported when geometry could not be read.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// DistanceTo returns the euclidean distance between the centres of two boxes.
func (b BoundingBox) DistanceTo(o BoundingBox) float64 {
	x1, y1 := b.Center()
	x2, y2 := o.Center()
	return math.Hypot(x2-x1, y2-y1)
}
