package tfidf

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/spigell/assessment-recommender/internal/embedding"
)

func TestEncodeBeforePrepare(t *testing.T) {
	_, err := New().Encode(context.Background(), []string{"java"})
	if !errors.Is(err, embedding.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestPrepareAndEncode(t *testing.T) {
	enc := New()
	corpus := []string{
		"Java 8 Knowledge & Skills Yes No",
		"Python Knowledge & Skills Yes No",
		"OPQ32r Personality & Behavior Yes No",
	}
	if err := enc.Prepare(corpus); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	vectors, err := enc.Encode(context.Background(), []string{"java developer", "zzz unknown"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	dim, err := embedding.ValidateVectors(vectors, 2)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if dim != enc.Dimension() {
		t.Fatalf("expected dimension %d, got %d", enc.Dimension(), dim)
	}

	var norm float64
	for _, v := range vectors[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit vector, got squared norm %v", norm)
	}

	for _, v := range vectors[1] {
		if v != 0 {
			t.Fatalf("expected zero vector for unknown terms, got %v", vectors[1])
		}
	}
}

func TestPrepareIsDeterministic(t *testing.T) {
	corpus := []string{"Verify Numerical Ability", "Verify Verbal Ability"}

	a, b := New(), New()
	if err := a.Prepare(corpus); err != nil {
		t.Fatalf("prepare a: %v", err)
	}
	if err := b.Prepare(corpus); err != nil {
		t.Fatalf("prepare b: %v", err)
	}

	va, _ := a.Encode(context.Background(), []string{"numerical"})
	vb, _ := b.Encode(context.Background(), []string{"numerical"})
	for i := range va[0] {
		if va[0][i] != vb[0][i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
}

func TestPrepareEmptyCorpus(t *testing.T) {
	if err := New().Prepare(nil); err == nil {
		t.Fatalf("expected error for empty corpus")
	}
}
