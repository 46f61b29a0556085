// Package embedding defines the text encoder contract shared by the corpus
// build and query paths.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrEncoding marks failures to turn text into vectors: the model is not
// reachable, an input cannot be encoded, or vectors from different models are mixed.
var ErrEncoding = errors.New("encoding error")

// Encoder turns texts into fixed-dimension vectors. Implementations return
// exactly one vector per input, in input order, or an error.
type Encoder interface {
	Model() string
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Preparer is implemented by encoders that must be fitted on the corpus
// before they can encode.
type Preparer interface {
	Prepare(corpus []string) error
}

// Fingerprinter is implemented by encoders whose output depends on settings
// besides the model name, such as task type or output dimension.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies everything that shapes e's vectors. It falls back to
// the model name for encoders without extra settings.
func Fingerprint(e Encoder) string {
	if f, ok := e.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	return e.Model()
}

// Errorf wraps a formatted message with ErrEncoding.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEncoding, fmt.Sprintf(format, args...))
}

// ValidateText reports why text cannot be sent to an encoder.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return Errorf("text is empty")
	}
	if strings.ContainsRune(text, 0) {
		return Errorf("text contains a null byte")
	}
	if !utf8.ValidString(text) {
		return Errorf("text is not valid utf-8")
	}
	return nil
}

// ValidateVectors checks that vectors line up with want inputs, share a single
// non-zero dimension and contain only finite values. It returns that dimension.
func ValidateVectors(vectors [][]float32, want int) (int, error) {
	if len(vectors) != want {
		return 0, Errorf("encoder returned %d vectors for %d inputs", len(vectors), want)
	}
	if want == 0 {
		return 0, nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return 0, Errorf("encoder returned an empty vector")
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return 0, Errorf("vector %d has dimension %d, expected %d", i, len(vec), dim)
		}
		if !Finite(vec) {
			return 0, Errorf("vector %d contains non-finite values", i)
		}
	}
	return dim, nil
}

// Finite reports whether every component of vec is a finite number.
func Finite(vec []float32) bool {
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Normalize scales vec to unit length in place. Zero vectors are left untouched.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
