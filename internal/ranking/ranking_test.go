package ranking

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embedding"
	"github.com/spigell/assessment-recommender/internal/index"
)

type tableEncoder map[string][]float32

func (tableEncoder) Model() string { return "table" }

func (e tableEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e[text]
	}
	return out, nil
}

func buildIndex(t *testing.T, vectors map[string][]float32, names ...string) *index.CorpusIndex {
	t.Helper()
	entries := make([]catalog.Entry, len(names))
	for i, name := range names {
		entries[i] = catalog.NewEntry("", name, "example.com/"+name, catalog.SupportUnknown, catalog.SupportUnknown, nil)
	}
	idx, err := index.Build(context.Background(), tableEncoder(vectors), entries, zap.NewNop())
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

func TestCosine(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}

	if got := Cosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("self similarity = %v, want 1", got)
	}
	if Cosine(a, b) != Cosine(b, a) {
		t.Fatalf("cosine must be symmetric")
	}
	if got := Cosine([]float32{0, 0, 0}, a); got != 0 {
		t.Fatalf("zero vector similarity = %v, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("opposite vectors = %v, want -1", got)
	}
}

func TestRankOrdersByScore(t *testing.T) {
	vectors := map[string][]float32{
		"far":   {0, 1},
		"near":  {1, 0.1},
		"exact": {2, 0},
		"mid":   {1, 1},
	}
	idx := buildIndex(t, vectors, "far", "near", "exact", "mid")

	results, err := Rank([]float32{1, 0}, idx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"exact", "near", "mid"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, name := range want {
		if results[i].Entry.Name != name {
			t.Fatalf("position %d: got %q want %q", i, results[i].Entry.Name, name)
		}
		if i > 0 && results[i].Score > results[i-1].Score {
			t.Fatalf("scores not descending: %v", results)
		}
	}
}

func TestRankBreaksTiesByCorpusOrder(t *testing.T) {
	vectors := map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
		"c": {2, 0},
		"d": {5, 0},
	}
	idx := buildIndex(t, vectors, "a", "b", "c", "d")

	for range 5 {
		results, err := Rank([]float32{1, 0}, idx, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 4 {
			t.Fatalf("expected k capped at corpus size, got %d", len(results))
		}
		got := []string{results[0].Entry.Name, results[1].Entry.Name, results[2].Entry.Name, results[3].Entry.Name}
		want := []string{"a", "c", "d", "b"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("tie order: got %v want %v", got, want)
			}
		}
	}
}

func TestRankEntryPointsIntoIndex(t *testing.T) {
	idx := buildIndex(t, map[string][]float32{"only": {1, 0}}, "only")

	results, err := Rank([]float32{1, 0}, idx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Entry != idx.Entry(0) {
		t.Fatalf("result must reference the index entry")
	}
}

func TestRankEmptyIndex(t *testing.T) {
	idx := buildIndex(t, nil)

	results, err := Rank([]float32{1, 0}, idx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestRankErrors(t *testing.T) {
	idx := buildIndex(t, map[string][]float32{"x": {1, 0}}, "x")

	if _, err := Rank([]float32{1, 0}, idx, 0); !errors.Is(err, ErrInvalidTopK) {
		t.Fatalf("expected ErrInvalidTopK, got %v", err)
	}
	if _, err := Rank([]float32{1, 0, 0}, idx, 1); !errors.Is(err, embedding.ErrEncoding) {
		t.Fatalf("expected ErrEncoding for dimension mismatch, got %v", err)
	}
	nan := float32(math.NaN())
	if _, err := Rank([]float32{nan, 0}, idx, 1); !errors.Is(err, embedding.ErrEncoding) {
		t.Fatalf("expected ErrEncoding for NaN query, got %v", err)
	}
}
