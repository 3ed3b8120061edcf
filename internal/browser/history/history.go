// Package history remembers which locators have found each logical element,
// ranked by how often they succeeded.
package history

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
)

const (
	DefaultCapacity = 100
	DefaultFanout   = 5
)

// Record is one locator that has resolved an element.
type Record struct {
	Locator      schemas.Locator
	Snapshot     schemas.AttributeSnapshot
	SuccessCount int
}

// ElementHistory is a read-only copy of one element's records, best first.
type ElementHistory struct {
	ElementID         string
	Records           []Record
	TotalSuccessCount int
}

type entry struct {
	Record
	lastUsed uint64
}

type elementHistory struct {
	records []*entry // sorted by SuccessCount desc; ties keep their relative order
	total   int
}

// Store is safe for concurrent use. All methods hold the lock only for
// in-memory work and copy data out before returning.
type Store struct {
	mu       sync.RWMutex
	capacity int
	fanout   int
	clock    uint64

	histories map[string]*elementHistory
	// bounded is non-nil when the number of tracked elements is capped.
	bounded *simplelru.LRU[string, *elementHistory]
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the maximum records kept per element.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithFanout sets how many alternates Alternates returns.
func WithFanout(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.fanout = n
		}
	}
}

// WithMaxElements caps the number of tracked element ids; the least
// recently reinforced element is forgotten first. Zero means unbounded.
func WithMaxElements(n int) Option {
	return func(s *Store) {
		if n <= 0 {
			s.bounded = nil
			return
		}
		// NewLRU only fails for a non-positive size.
		s.bounded, _ = simplelru.NewLRU[string, *elementHistory](n, nil)
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		capacity:  DefaultCapacity,
		fanout:    DefaultFanout,
		histories: make(map[string]*elementHistory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record reinforces loc for elementID and stores snap as its latest
// snapshot. A structurally equal locator is incremented in place; otherwise
// a new record is inserted, evicting the least successful one when full.
// It returns the record's success count.
func (s *Store) Record(elementID string, loc schemas.Locator, snap schemas.AttributeSnapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock++
	h := s.getOrCreate(elementID)
	h.total++

	for i, e := range h.records {
		if e.Locator.Equal(loc) {
			e.SuccessCount++
			e.Snapshot = snap
			e.lastUsed = s.clock
			h.bubbleUp(i)
			return e.SuccessCount
		}
	}

	if len(h.records) >= s.capacity {
		h.evict()
	}
	h.records = append(h.records, &entry{
		Record:   Record{Locator: loc, Snapshot: snap, SuccessCount: 1},
		lastUsed: s.clock,
	})
	// Existing records all have a count of at least 1, so appending keeps rank order.
	return 1
}

// Alternates returns up to the fan-out of recorded locators for elementID,
// best first, skipping any structurally equal to excluding.
func (s *Store) Alternates(elementID string, excluding schemas.Locator) []schemas.Locator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.peek(elementID)
	if h == nil {
		return nil
	}
	out := make([]schemas.Locator, 0, min(s.fanout, len(h.records)))
	for _, e := range h.records {
		if len(out) == s.fanout {
			break
		}
		if e.Locator.Equal(excluding) {
			continue
		}
		out = append(out, e.Locator)
	}
	return out
}

// BestSnapshot returns the snapshot of the top-ranked record.
func (s *Store) BestSnapshot(elementID string) (schemas.AttributeSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.peek(elementID)
	if h == nil || len(h.records) == 0 {
		return schemas.AttributeSnapshot{}, false
	}
	return h.records[0].Snapshot, true
}

// History returns a copy of elementID's records, best first.
func (s *Store) History(elementID string) (ElementHistory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.peek(elementID)
	if h == nil {
		return ElementHistory{}, false
	}
	out := ElementHistory{ElementID: elementID, TotalSuccessCount: h.total}
	out.Records = make([]Record, len(h.records))
	for i, e := range h.records {
		out.Records[i] = e.Record
	}
	return out, true
}

// Len returns the number of tracked elements.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bounded != nil {
		return s.bounded.Len()
	}
	return len(s.histories)
}

// Clear forgets every element.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = make(map[string]*elementHistory)
	if s.bounded != nil {
		s.bounded.Purge()
	}
}

// ClearElement forgets one element.
func (s *Store) ClearElement(elementID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, elementID)
	if s.bounded != nil {
		s.bounded.Remove(elementID)
	}
}

func (s *Store) peek(elementID string) *elementHistory {
	if s.bounded != nil {
		h, _ := s.bounded.Peek(elementID)
		return h
	}
	return s.histories[elementID]
}

func (s *Store) getOrCreate(elementID string) *elementHistory {
	if s.bounded != nil {
		if h, ok := s.bounded.Get(elementID); ok {
			return h
		}
		h := &elementHistory{}
		s.bounded.Add(elementID, h)
		return h
	}
	h, ok := s.histories[elementID]
	if !ok {
		h = &elementHistory{}
		s.histories[elementID] = h
	}
	return h
}

// bubbleUp moves the record at i forward past records with a lower count.
// Records with equal counts keep their relative order.
func (h *elementHistory) bubbleUp(i int) {
	for i > 0 && h.records[i-1].SuccessCount < h.records[i].SuccessCount {
		h.records[i-1], h.records[i] = h.records[i], h.records[i-1]
		i--
	}
}

// evict drops the record with the lowest count; among equals, the least
// recently used.
func (h *elementHistory) evict() {
	if len(h.records) == 0 {
		return
	}
	victim := 0
	for i, e := range h.records {
		v := h.records[victim]
		if e.SuccessCount < v.SuccessCount || (e.SuccessCount == v.SuccessCount && e.lastUsed < v.lastUsed) {
			victim = i
		}
	}
	h.records = append(h.records[:victim], h.records[victim+1:]...)
}
