// Package index holds the encoded catalog corpus that queries are ranked against.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embedding"
)

// ErrIntegrity marks a persisted index that cannot be trusted.
var ErrIntegrity = errors.New("index integrity error")

// CorpusIndex pairs catalog entries with their vectors by position. It is
// immutable once built; a rebuild produces a new value.
type CorpusIndex struct {
	entries   []catalog.Entry
	vectors   [][]float32
	encoder   embedding.Encoder
	model     string
	dimension int
	createdAt time.Time
}

// Build encodes every entry's combined text in one batch. It either indexes
// every entry or fails; nothing is dropped silently.
func Build(ctx context.Context, encoder embedding.Encoder, entries []catalog.Entry, log *zap.Logger) (*CorpusIndex, error) {
	if encoder == nil {
		return nil, embedding.Errorf("no encoder configured")
	}
	if log == nil {
		log = zap.NewNop()
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		if err := embedding.ValidateText(entry.CombinedText); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, entry.Name, err)
		}
		texts[i] = entry.CombinedText
	}

	idx := &CorpusIndex{
		entries:   append([]catalog.Entry(nil), entries...),
		encoder:   encoder,
		model:     encoder.Model(),
		createdAt: time.Now().UTC(),
	}

	if len(texts) == 0 {
		log.Warn("building an empty index", zap.String("model", idx.model))
		return idx, nil
	}

	if preparer, ok := encoder.(embedding.Preparer); ok {
		if err := preparer.Prepare(texts); err != nil {
			return nil, fmt.Errorf("prepare encoder: %w", err)
		}
	}

	started := time.Now()
	vectors, err := encoder.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}

	dim, err := embedding.ValidateVectors(vectors, len(texts))
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}

	idx.vectors = vectors
	idx.dimension = dim

	log.Info("index built",
		zap.Int("entries", len(entries)),
		zap.Int("dimension", dim),
		zap.String("model", idx.model),
		zap.Duration("took", time.Since(started)),
	)
	return idx, nil
}

// EncodeQuery encodes text with the encoder the corpus was built with.
func (x *CorpusIndex) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	if x.encoder == nil {
		return nil, embedding.Errorf("index has no encoder")
	}
	if model := x.encoder.Model(); model != x.model {
		return nil, embedding.Errorf("encoder model %q does not match index model %q", model, x.model)
	}
	if err := embedding.ValidateText(text); err != nil {
		return nil, err
	}

	vectors, err := x.encoder.Encode(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	dim, err := embedding.ValidateVectors(vectors, 1)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if x.dimension > 0 && dim != x.dimension {
		return nil, embedding.Errorf("query dimension %d does not match index dimension %d", dim, x.dimension)
	}
	return vectors[0], nil
}

// Size returns the number of indexed entries.
func (x *CorpusIndex) Size() int { return len(x.entries) }

// Entries returns the indexed entries. Callers must not modify them.
func (x *CorpusIndex) Entries() []catalog.Entry { return x.entries }

// Entry returns a pointer to the i-th entry.
func (x *CorpusIndex) Entry(i int) *catalog.Entry { return &x.entries[i] }

// Vectors returns the corpus vectors aligned with Entries.
func (x *CorpusIndex) Vectors() [][]float32 { return x.vectors }

// Model is the encoder model that produced the vectors.
func (x *CorpusIndex) Model() string { return x.model }

// Dimension is zero for an empty index.
func (x *CorpusIndex) Dimension() int { return x.dimension }

// CreatedAt is when the index was built, carried over by Save and Load.
func (x *CorpusIndex) CreatedAt() time.Time { return x.createdAt }
