// Package similarity scores how closely a candidate element matches a
// remembered attribute snapshot.
package similarity

import (
	"context"
	"sort"
	"strings"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
)

// DefaultThreshold is the minimum score for a candidate to be eligible.
const DefaultThreshold = 0.7

const (
	identifyingWeight = 3.0
	defaultWeight     = 1.0
)

// maxEditRunes bounds the edit distance input; longer values are compared on
// their leading runes only.
const maxEditRunes = 256

// Per-attribute comparison tiers.
const (
	scoreExact           = 1.0
	scoreCaseInsensitive = 0.9
	scoreContains        = 0.7
)

// DefaultWeights lists the identifying attributes; everything else weighs 1.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"id":                  identifyingWeight,
		"name":                identifyingWeight,
		"class":               identifyingWeight,
		"title":               identifyingWeight,
		schemas.TextAttribute: identifyingWeight,
	}
}

// Scorer compares attribute snapshots. It is stateless after construction
// and safe for concurrent use.
type Scorer struct {
	weights   map[string]float64
	threshold float64
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithThreshold sets the eligibility threshold.
func WithThreshold(t float64) Option {
	return func(s *Scorer) { s.threshold = t }
}

// WithWeights overrides individual attribute weights.
func WithWeights(w map[string]float64) Option {
	return func(s *Scorer) {
		for name, weight := range w {
			s.weights[strings.ToLower(name)] = weight
		}
	}
}

func New(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights(), threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scorer) Threshold() float64 { return s.threshold }

// Weight returns the weight applied to attribute name.
func (s *Scorer) Weight(name string) float64 {
	if w, ok := s.weights[name]; ok {
		return w
	}
	return defaultWeight
}

// Score returns a value in [0,1]. Every attribute of target contributes its
// weight to the denominator; attributes missing from candidate add nothing to
// the numerator. A target with no weighted attributes scores 0.
func (s *Scorer) Score(target, candidate schemas.AttributeSnapshot) float64 {
	var sum, total float64
	for _, a := range target.Attributes() {
		w := s.Weight(a.Name)
		if w <= 0 {
			continue
		}
		total += w
		cv, ok := candidate.Get(a.Name)
		if !ok {
			continue
		}
		if a.Name == "class" {
			sum += w * Jaccard(a.Value, cv)
		} else {
			sum += w * CompareValues(a.Value, cv)
		}
	}
	if total == 0 {
		return 0
	}
	return clamp(sum / total)
}

// Eligible reports whether score meets the threshold.
func (s *Scorer) Eligible(score float64) bool {
	return score >= s.threshold
}

// Candidate is a scored element. Index is the driver-reported DOM order.
type Candidate struct {
	Index    int
	Snapshot schemas.AttributeSnapshot
	Score    float64
}

// Rank scores every candidate and returns the eligible ones, best first.
// Equal scores keep DOM order so the lowest index wins.
func (s *Scorer) Rank(target schemas.AttributeSnapshot, candidates []schemas.AttributeSnapshot) []Candidate {
	out, _ := s.RankContext(context.Background(), target, candidates)
	return out
}

// RankContext is Rank that gives up with ctx's error between candidates.
func (s *Scorer) RankContext(ctx context.Context, target schemas.AttributeSnapshot, candidates []schemas.AttributeSnapshot) ([]Candidate, error) {
	out := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := s.Score(target, c)
		if !s.Eligible(score) {
			continue
		}
		out = append(out, Candidate{Index: i, Snapshot: c, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// Best returns the top eligible candidate, if any.
func (s *Scorer) Best(target schemas.AttributeSnapshot, candidates []schemas.AttributeSnapshot) (Candidate, bool) {
	ranked := s.Rank(target, candidates)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// CompareValues applies the exact, case-insensitive, containment and edit
// distance tiers in that order.
func CompareValues(a, b string) float64 {
	switch {
	case a == b:
		return scoreExact
	case a == "" || b == "":
		return 0
	case strings.EqualFold(a, b):
		return scoreCaseInsensitive
	case strings.Contains(a, b) || strings.Contains(b, a):
		return scoreContains
	}
	ra, rb := headRunes(a), headRunes(b)
	longest := max(len(ra), len(rb))
	return clamp(1 - float64(levenshtein(ra, rb))/float64(longest))
}

// Jaccard compares whitespace-separated token sets. Two empty sets are identical.
func Jaccard(a, b string) float64 {
	setA, setB := tokens(a), tokens(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func headRunes(s string) []rune {
	r := []rune(s)
	if len(r) > maxEditRunes {
		r = r[:maxEditRunes]
	}
	return r
}

// levenshtein is the rune edit distance, computed with two rows.
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
