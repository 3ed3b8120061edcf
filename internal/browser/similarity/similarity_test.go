package similarity_test

import (
	"context"
	"strings"
	"testing"
	"time"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/similarity"
)

func snap(tag string, kv ...string) schemas.AttributeSnapshot {
	attrs := make([]schemas.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, schemas.Attribute{Name: kv[i], Value: kv[i+1]})
	}
	return schemas.NewAttributeSnapshot(tag, attrs, schemas.BoundingBox{}, time.Time{})
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact", "submit", "submit", 1.0},
		{"both empty", "", "", 1.0},
		{"case insensitive", "Submit", "submit", 0.9},
		{"contains", "submit", "submit-btn", 0.7},
		{"contained", "submit-btn", "btn", 0.7},
		{"empty against value", "", "submit", 0},
		{"edit distance", "kitten", "sitting", 1 - 3.0/7.0},
		{"disjoint", "abc", "xyz", 0},
		{"runes not bytes", "héllo", "hallo", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarity.CompareValues(tt.a, tt.b), 1e-9)
		})
	}
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, similarity.Jaccard("btn btn-primary", "btn-primary  btn"))
	assert.Equal(t, 0.5, similarity.Jaccard("btn btn-primary", "btn"))
	assert.InDelta(t, 1.0/3.0, similarity.Jaccard("a b", "b c"), 1e-9)
	assert.Equal(t, 0.0, similarity.Jaccard("a", ""))
	assert.Equal(t, 1.0, similarity.Jaccard(" ", ""))
}

func TestScore(t *testing.T) {
	s := similarity.New()

	t.Run("identical", func(t *testing.T) {
		a := snap("button", "id", "submit", "class", "btn btn-primary", "text", "Log in", "type", "submit")
		assert.Equal(t, 1.0, s.Score(a, a))
	})

	t.Run("renamed id keeps class and text", func(t *testing.T) {
		target := snap("button", "id", "submit", "class", "btn-primary", "text", "Log in")
		cand := snap("button", "id", "submit-btn", "class", "btn-primary", "text", "Log in")
		// id contains -> 0.7*3, class 1*3, text 1*3, over 9.
		assert.InDelta(t, (2.1+3+3)/9, s.Score(target, cand), 1e-9)
		assert.True(t, s.Eligible(s.Score(target, cand)))
	})

	t.Run("missing attributes stay in the denominator", func(t *testing.T) {
		target := snap("a", "id", "home", "href", "/")
		cand := snap("a", "href", "/")
		assert.InDelta(t, 1.0/4.0, s.Score(target, cand), 1e-9)
	})

	t.Run("extra candidate attributes are ignored", func(t *testing.T) {
		target := snap("a", "href", "/")
		cand := snap("a", "href", "/", "id", "x", "class", "nav")
		assert.Equal(t, 1.0, s.Score(target, cand))
	})

	t.Run("empty target", func(t *testing.T) {
		assert.Zero(t, s.Score(snap("div"), snap("div", "id", "x")))
	})

	t.Run("weight overrides", func(t *testing.T) {
		weighted := similarity.New(similarity.WithWeights(map[string]float64{"href": 0, "ID": 1}))
		target := snap("a", "id", "home", "href", "/")
		cand := snap("a", "id", "home", "href", "/elsewhere")
		assert.Equal(t, 1.0, weighted.Score(target, cand), "zero weight removes href entirely")
		assert.Equal(t, 1.0, weighted.Weight("id"))
	})
}

func TestRank(t *testing.T) {
	s := similarity.New()
	target := snap("button", "class", "btn-primary", "text", "Log in")
	candidates := []schemas.AttributeSnapshot{
		snap("button", "class", "btn", "text", "Cancel"),
		snap("button", "class", "btn-primary", "text", "Log in"),
		snap("button", "class", "btn-primary", "text", "Log in"),
		snap("button", "class", "btn-primary", "text", "Log in now"),
	}

	ranked := s.Rank(target, candidates)
	require.Len(t, ranked, 3)
	assert.Equal(t, 1, ranked[0].Index, "ties resolve to the lowest DOM index")
	assert.Equal(t, 2, ranked[1].Index)
	assert.Equal(t, 3, ranked[2].Index)
	assert.InDelta(t, (3+3*0.7)/6, ranked[2].Score, 1e-9)

	best, ok := s.Best(target, candidates)
	require.True(t, ok)
	assert.Equal(t, 1, best.Index)
}

func TestRank_ThresholdIsEnforced(t *testing.T) {
	s := similarity.New()
	target := snap("button", "id", "submit", "class", "btn-primary", "text", "Log in")
	only := snap("button", "id", "cancel", "class", "btn", "text", "Cancel")

	assert.Less(t, s.Score(target, only), similarity.DefaultThreshold)
	assert.Empty(t, s.Rank(target, []schemas.AttributeSnapshot{only}))
	_, ok := s.Best(target, []schemas.AttributeSnapshot{only})
	assert.False(t, ok)

	strict := similarity.New(similarity.WithThreshold(1))
	assert.True(t, strict.Eligible(1))
	assert.False(t, strict.Eligible(0.999))
}

type fuzzSnapshot struct {
	Tag   string
	Attrs []schemas.Attribute
}

func FuzzScore(f *testing.F) {
	f.Add([]byte("button\x00id\x00submit"))
	f.Add([]byte{})

	s := similarity.New()
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var a, b fuzzSnapshot
		if err := consumer.GenerateStruct(&a); err != nil {
			return
		}
		if err := consumer.GenerateStruct(&b); err != nil {
			return
		}
		sa := schemas.NewAttributeSnapshot(a.Tag, a.Attrs, schemas.BoundingBox{}, time.Time{})
		sb := schemas.NewAttributeSnapshot(b.Tag, b.Attrs, schemas.BoundingBox{}, time.Time{})

		score := s.Score(sa, sb)
		if score < 0 || score > 1 {
			t.Fatalf("score %v out of range", score)
		}
		if sa.Len() > 0 && s.Score(sa, sa) != 1 {
			t.Fatalf("self score must be 1 for %v", sa.Attributes())
		}
	})
}

func FuzzCompareValues(f *testing.F) {
	f.Add("submit", "Submit")
	f.Add("", "x")
	f.Fuzz(func(t *testing.T, a, b string) {
		got := similarity.CompareValues(a, b)
		if got < 0 || got > 1 {
			t.Fatalf("CompareValues(%q, %q) = %v", a, b, got)
		}
		if rev := similarity.CompareValues(b, a); rev != got {
			t.Fatalf("not symmetric: %v vs %v", got, rev)
		}
	})
}

func TestCompareValues_LongInputsStayCheap(t *testing.T) {
	a := "data:image/png;base64," + strings.Repeat("A", 20_000)
	b := "data:image/png;base64," + strings.Repeat("B", 20_000)

	start := time.Now()
	got := similarity.CompareValues(a, b)
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.Less(t, got, similarity.DefaultThreshold)

	s := similarity.New()
	target := snap("img", "src", a, "alt", "logo")
	candidates := make([]schemas.AttributeSnapshot, 500)
	for i := range candidates {
		candidates[i] = snap("img", "src", b, "alt", "logo")
	}
	start = time.Now()
	s.Rank(target, candidates)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRankContext_StopsWhenCancelled(t *testing.T) {
	s := similarity.New()
	target := snap("button", "text", "Log in")
	candidates := []schemas.AttributeSnapshot{snap("button", "text", "Log in")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ranked, err := s.RankContext(ctx, target, candidates)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ranked)

	ranked, err = s.RankContext(context.Background(), target, candidates)
	require.NoError(t, err)
	assert.Len(t, ranked, 1)
}
