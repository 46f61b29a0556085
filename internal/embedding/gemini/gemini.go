// Package gemini encodes text with the Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/assessment-recommender/internal/embedding"
	"github.com/spigell/assessment-recommender/internal/logger"
)

const (
	defaultModel     = "text-embedding-004"
	defaultTaskType  = "SEMANTIC_SIMILARITY"
	maxBatchSize     = 100
	defaultBatchSize = maxBatchSize
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config configures the encoder.
type Config struct {
	APIKey    string
	Model     string
	TaskType  string
	Dimension int
	BatchSize int
	Workers   int
}

// Encoder implements embedding.Encoder on top of the genai client.
type Encoder struct {
	models    contentEmbedder
	model     string
	config    *genai.EmbedContentConfig
	batchSize int
	workers   int
	logger    *zap.Logger
}

// New creates an encoder backed by the Gemini API.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Encoder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEncoder(client.Models, cfg, log), nil
}

func newEncoder(models contentEmbedder, cfg Config, log *zap.Logger) *Encoder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	taskType := strings.TrimSpace(cfg.TaskType)
	if taskType == "" {
		taskType = defaultTaskType
	}

	embedCfg := &genai.EmbedContentConfig{TaskType: taskType}
	if cfg.Dimension > 0 {
		dim := int32(cfg.Dimension)
		embedCfg.OutputDimensionality = &dim
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = defaultBatchSize
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Encoder{
		models:    models,
		model:     model,
		config:    embedCfg,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger.WithCommonFields(log, "embedding", "gemini", model),
	}
}

// Model returns the embedding model name.
func (e *Encoder) Model() string { return e.model }

// Fingerprint adds the task type and output dimension to the model name.
func (e *Encoder) Fingerprint() string {
	dim := "default"
	if e.config.OutputDimensionality != nil {
		dim = strconv.Itoa(int(*e.config.OutputDimensionality))
	}
	return e.model + "@" + e.config.TaskType + "/" + dim
}

// Encode embeds texts in batches. Any failed batch fails the whole call.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := chunk(texts, e.batchSize)
	e.logger.Debug("embedding texts",
		zap.Int("texts", len(texts)),
		zap.Int("batches", len(batches)),
		zap.Int("workers", e.workers),
	)

	mapper := iter.Mapper[[]string, [][]float32]{MaxGoroutines: e.workers}
	results, err := mapper.MapErr(batches, func(batch *[]string) ([][]float32, error) {
		return e.embedBatch(ctx, *batch)
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, vectors := range results {
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Encoder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(batch))
	for i, text := range batch {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, e.config)
	if err != nil {
		return nil, fmt.Errorf("%w: embed content: %w", embedding.ErrEncoding, err)
	}
	if resp == nil || len(resp.Embeddings) != len(batch) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, embedding.Errorf("gemini returned %d embeddings for %d inputs", got, len(batch))
	}

	vectors := make([][]float32, len(batch))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, embedding.Errorf("gemini returned an empty embedding at position %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func chunk(texts []string, size int) [][]string {
	batches := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batches = append(batches, texts[start:end])
	}
	return batches
}
