// Package cache persists embeddings in a BoltDB file keyed by encoder
// fingerprint and text.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/embedding"
	"github.com/spigell/assessment-recommender/internal/logger"
)

var bucketName = []byte("embeddings")

// Encoder wraps another encoder and only forwards cache misses to it.
type Encoder struct {
	inner       embedding.Encoder
	fingerprint string
	db          *bbolt.DB
	logger      *zap.Logger
}

// Open opens (or creates) the cache file at path around inner.
func Open(path string, inner embedding.Encoder, log *zap.Logger) (*Encoder, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %s: %w", path, err)
	}
	fingerprint := embedding.Fingerprint(inner)
	return &Encoder{
		inner:       inner,
		fingerprint: fingerprint,
		db:          db,
		logger: logger.WithCommonFields(log, "embedding-cache", "", inner.Model()).
			With(zap.String("fingerprint", fingerprint)),
	}, nil
}

// Model returns the wrapped model name.
func (c *Encoder) Model() string { return c.inner.Model() }

// Close closes the cache file.
func (c *Encoder) Close() error { return c.db.Close() }

// Encode serves cached vectors and encodes all misses in one inner call.
func (c *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([][]byte, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		for i, key := range keys {
			if v := b.Get(key); v != nil {
				out[i] = decode(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}

	var missing []int
	for i, vec := range out {
		if vec == nil {
			missing = append(missing, i)
		}
	}

	c.logger.Debug("embedding cache lookup",
		zap.Int("texts", len(texts)),
		zap.Int("hits", len(texts)-len(missing)),
	)
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	vectors, err := c.inner.Encode(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, embedding.Errorf("encoder returned %d vectors for %d inputs", len(vectors), len(pending))
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		for j, i := range missing {
			out[i] = vectors[j]
			if err := b.Put(keys[i], encode(vectors[j])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to persist embeddings", zap.Error(err))
		for j, i := range missing {
			out[i] = vectors[j]
		}
	}

	return out, nil
}

func (c *Encoder) key(text string) []byte {
	h := sha1.New()
	_, _ = io.WriteString(h, c.fingerprint)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return []byte(hex.EncodeToString(h.Sum(nil)))
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decode(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
