package index

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embedding"
)

const documentVersion = 1

//go:embed schema.json
var documentSchema string

type document struct {
	Version   int             `json:"version"`
	Model     string          `json:"model"`
	Dimension int             `json:"dimension"`
	CreatedAt time.Time       `json:"created_at"`
	Entries   []catalog.Entry `json:"entries"`
	Vectors   [][]float32     `json:"vectors"`
}

// Save writes the index to path, replacing any previous file atomically.
func Save(path string, x *CorpusIndex) error {
	doc := document{
		Version:   documentVersion,
		Model:     x.model,
		Dimension: x.dimension,
		CreatedAt: x.createdAt,
		Entries:   x.entries,
		Vectors:   x.vectors,
	}
	if doc.Entries == nil {
		doc.Entries = []catalog.Entry{}
	}
	if doc.Vectors == nil {
		doc.Vectors = [][]float32{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Load reads an index written by Save and binds it to encoder. Structural
// problems are reported as ErrIntegrity; an encoder for a different model as
// embedding.ErrEncoding.
func Load(path string, encoder embedding.Encoder, log *zap.Logger) (*CorpusIndex, error) {
	if log == nil {
		log = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	x, err := decode(data)
	if err != nil {
		return nil, err
	}

	if encoder == nil {
		return nil, embedding.Errorf("no encoder configured")
	}
	if model := encoder.Model(); model != x.model {
		return nil, embedding.Errorf("index %s was built with %q, encoder is %q", path, x.model, model)
	}
	x.encoder = encoder

	if preparer, ok := encoder.(embedding.Preparer); ok && x.Size() > 0 {
		texts := make([]string, x.Size())
		for i, entry := range x.entries {
			texts[i] = entry.CombinedText
		}
		if err := preparer.Prepare(texts); err != nil {
			return nil, fmt.Errorf("prepare encoder: %w", err)
		}
	}

	log.Info("index loaded",
		zap.String("path", path),
		zap.Int("entries", x.Size()),
		zap.Int("dimension", x.dimension),
		zap.String("model", x.model),
	)
	return x, nil
}

func decode(data []byte) (*CorpusIndex, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, fmt.Errorf("%w: schema validation failed: %s", ErrIntegrity, strings.Join(errs, ", "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}

	if len(doc.Entries) != len(doc.Vectors) {
		return nil, fmt.Errorf("%w: %d entries but %d vectors", ErrIntegrity, len(doc.Entries), len(doc.Vectors))
	}
	if len(doc.Vectors) > 0 {
		dim, err := embedding.ValidateVectors(doc.Vectors, len(doc.Entries))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
		if dim != doc.Dimension {
			return nil, fmt.Errorf("%w: vectors have dimension %d, document declares %d", ErrIntegrity, dim, doc.Dimension)
		}
	} else if doc.Dimension != 0 {
		return nil, fmt.Errorf("%w: empty index declares dimension %d", ErrIntegrity, doc.Dimension)
	}

	return &CorpusIndex{
		entries:   doc.Entries,
		vectors:   doc.Vectors,
		model:     doc.Model,
		dimension: doc.Dimension,
		createdAt: doc.CreatedAt,
	}, nil
}
