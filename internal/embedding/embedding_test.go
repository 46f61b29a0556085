package embedding

import (
	"errors"
	"math"
	"testing"
)

func TestValidateText(t *testing.T) {
	cases := map[string]bool{
		"java developer": true,
		"   ":            false,
		"nul\x00byte":    false,
		"bad \xff utf8":  false,
	}
	for text, ok := range cases {
		err := ValidateText(text)
		if ok && err != nil {
			t.Fatalf("ValidateText(%q) unexpected error: %v", text, err)
		}
		if !ok && !errors.Is(err, ErrEncoding) {
			t.Fatalf("ValidateText(%q) expected ErrEncoding, got %v", text, err)
		}
	}
}

func TestValidateVectors(t *testing.T) {
	dim, err := ValidateVectors([][]float32{{1, 2}, {3, 4}}, 2)
	if err != nil || dim != 2 {
		t.Fatalf("expected dim 2, got %d err %v", dim, err)
	}

	bad := []struct {
		name    string
		vectors [][]float32
		want    int
	}{
		{name: "count mismatch", vectors: [][]float32{{1}}, want: 2},
		{name: "ragged", vectors: [][]float32{{1, 2}, {1}}, want: 2},
		{name: "empty vector", vectors: [][]float32{{}}, want: 1},
		{name: "nan", vectors: [][]float32{{float32(math.NaN())}}, want: 1},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ValidateVectors(tc.vectors, tc.want); !errors.Is(err, ErrEncoding) {
				t.Fatalf("expected ErrEncoding, got %v", err)
			}
		})
	}

	if dim, err := ValidateVectors(nil, 0); err != nil || dim != 0 {
		t.Fatalf("expected empty batch to validate, got %d %v", dim, err)
	}
}

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	Normalize(vec)
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected normalized vector %v", vec)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("expected zero vector untouched, got %v", zero)
	}
}
