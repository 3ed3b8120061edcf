package schemas

import (
	"encoding/json"
	"strings"
	"time"
)

// TextAttribute is the pseudo attribute under which visible text is stored.
const TextAttribute = "text"

// Attribute is one name/value pair of a snapshot.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AttributeSnapshot is the fingerprint of an element captured at one moment.
// It is immutable once built; accessors return copies.
type AttributeSnapshot struct {
	tag        string
	attrs      []Attribute
	box        BoundingBox
	capturedAt time.Time
}

// NewAttributeSnapshot copies attrs, lowercasing names. Later duplicates of a
// name are dropped so Get is unambiguous.
func NewAttributeSnapshot(tag string, attrs []Attribute, box BoundingBox, capturedAt time.Time) AttributeSnapshot {
	s := AttributeSnapshot{
		tag:        strings.ToLower(tag),
		box:        box,
		capturedAt: capturedAt,
	}
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		name := strings.ToLower(a.Name)
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		s.attrs = append(s.attrs, Attribute{Name: name, Value: a.Value})
	}
	return s
}

func (s AttributeSnapshot) Tag() string           { return s.tag }
func (s AttributeSnapshot) Box() BoundingBox      { return s.box }
func (s AttributeSnapshot) CapturedAt() time.Time { return s.capturedAt }
func (s AttributeSnapshot) Len() int              { return len(s.attrs) }
func (s AttributeSnapshot) IsZero() bool          { return s.tag == "" && len(s.attrs) == 0 }

// Get returns the value of name and whether it was captured.
func (s AttributeSnapshot) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range s.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Names returns attribute names in capture order.
func (s AttributeSnapshot) Names() []string {
	out := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		out[i] = a.Name
	}
	return out
}

// Attributes returns a copy of the captured attributes.
func (s AttributeSnapshot) Attributes() []Attribute {
	return append([]Attribute(nil), s.attrs...)
}

type snapshotJSON struct {
	Tag        string      `json:"tag"`
	Attributes []Attribute `json:"attributes"`
	Box        BoundingBox `json:"box"`
	CapturedAt time.Time   `json:"captured_at"`
}

func (s AttributeSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{Tag: s.tag, Attributes: s.Attributes(), Box: s.box, CapturedAt: s.capturedAt})
}

func (s *AttributeSnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewAttributeSnapshot(raw.Tag, raw.Attributes, raw.Box, raw.CapturedAt)
	return nil
}
