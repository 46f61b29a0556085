// Package ranking scores a query vector against every corpus vector.
package ranking

import (
	"errors"
	"math"
	"slices"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embedding"
	"github.com/spigell/assessment-recommender/internal/index"
)

// ErrInvalidTopK is returned when fewer than one result is requested.
var ErrInvalidTopK = errors.New("top-k must be at least 1")

// Result is one ranked entry. Entry points into the index it came from.
type Result struct {
	Entry *catalog.Entry `json:"entry"`
	Score float64        `json:"score"`
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// magnitude. Both must have the same length.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank returns the k highest scoring entries in descending score order.
// Equal scores keep corpus order. An empty index yields no results.
func Rank(query []float32, x *index.CorpusIndex, k int) ([]Result, error) {
	if k < 1 {
		return nil, ErrInvalidTopK
	}
	if x == nil || x.Size() == 0 {
		return []Result{}, nil
	}
	if len(query) != x.Dimension() {
		return nil, embedding.Errorf("query dimension %d does not match index dimension %d", len(query), x.Dimension())
	}
	if !embedding.Finite(query) {
		return nil, embedding.Errorf("query vector contains non-finite values")
	}

	type scored struct {
		pos   int
		score float64
	}

	vectors := x.Vectors()
	all := make([]scored, len(vectors))
	for i, vec := range vectors {
		all[i] = scored{pos: i, score: Cosine(query, vec)}
	}

	slices.SortStableFunc(all, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return a.pos - b.pos
		}
	})

	n := min(k, len(all))
	results := make([]Result, n)
	for i := range n {
		results[i] = Result{Entry: x.Entry(all[i].pos), Score: all[i].score}
	}
	return results, nil
}
