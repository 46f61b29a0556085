package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/ai"
	"github.com/spigell/assessment-recommender/internal/ai/gemini"
	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embedding"
	"github.com/spigell/assessment-recommender/internal/embedding/cache"
	embedgemini "github.com/spigell/assessment-recommender/internal/embedding/gemini"
	"github.com/spigell/assessment-recommender/internal/embedding/onnx"
	"github.com/spigell/assessment-recommender/internal/embedding/tfidf"
	"github.com/spigell/assessment-recommender/internal/filtering"
	"github.com/spigell/assessment-recommender/internal/index"
	"github.com/spigell/assessment-recommender/internal/logger"
	"github.com/spigell/assessment-recommender/internal/recommender"
	"github.com/spigell/assessment-recommender/internal/secrets"
	"github.com/spigell/assessment-recommender/internal/table"
)

const (
	providerTFIDF  = "tfidf"
	providerGemini = "gemini"
	providerONNX   = "onnx"

	apiKeyHint = "set GOOGLE_API_KEY (a .env file works) or the api-key-file key in the configuration file"
)

var apiKeyEnv = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

func setDefaults() {
	viper.SetDefault("catalog", "data/catalog.csv")
	viper.SetDefault("index-file", "data/index.json")
	viper.SetDefault("top-k", 10)

	viper.SetDefault("embedding.provider", providerTFIDF)
	viper.SetDefault("embedding.batch-size", 100)
	viper.SetDefault("embedding.workers", 4)
	viper.SetDefault("embedding.timeout", 30*time.Second)
	viper.SetDefault("embedding.gemini.model", "text-embedding-004")
	viper.SetDefault("embedding.gemini.task-type", "SEMANTIC_SIMILARITY")
	viper.SetDefault("embedding.onnx.max-seq-len", 256)

	viper.SetDefault("reformulation.enabled", false)
	viper.SetDefault("reformulation.timeout", 15*time.Second)
	viper.SetDefault("reformulation.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("reformulation.gemini.max-retries", 3)
	viper.SetDefault("reformulation.gemini.max-log-length", 200)

	viper.SetDefault("filters.dedupe", true)

	viper.SetDefault("evaluation.query-column", "Query")
	viper.SetDefault("evaluation.relevant-column", "Assessment_url")
	viper.SetDefault("evaluation.k", 10)
	viper.SetDefault("evaluation.debug-samples", 3)
	viper.SetDefault("evaluation.workers", 1)
	viper.SetDefault("evaluation.format", "text")
}

// encoderHandle owns an encoder and whatever must be released with it.
type encoderHandle struct {
	embedding.Encoder
	closers []func() error
}

func (h *encoderHandle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i]())
	}
	return errors.Join(errs...)
}

func newEncoder(ctx context.Context, cfg *EmbeddingConfig, log *zap.Logger) (*encoderHandle, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	handle := &encoderHandle{}

	switch provider {
	case "", providerTFIDF:
		handle.Encoder = tfidf.New()
		// Fitted on the corpus, so caching across builds would serve stale vectors.
		return handle, nil
	case providerGemini:
		gcfg := cfg.Gemini
		if gcfg == nil {
			gcfg = &GeminiEmbeddingConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gcfg.APIKey,
			File:  gcfg.APIKeyFile,
			Env:   apiKeyEnv,
		})
		if err != nil {
			return nil, err
		}
		enc, err := embedgemini.New(ctx, embedgemini.Config{
			APIKey:    apiKey,
			Model:     gcfg.Model,
			TaskType:  gcfg.TaskType,
			Dimension: gcfg.Dimension,
			BatchSize: cfg.BatchSize,
			Workers:   cfg.Workers,
		}, log)
		if err != nil {
			return nil, err
		}
		handle.Encoder = enc
	case providerONNX:
		ocfg := cfg.ONNX
		if ocfg == nil {
			return nil, errors.New("embedding.onnx section is required for the onnx provider")
		}
		enc, err := onnx.New(onnx.Config{
			LibraryPath:   ocfg.LibraryPath,
			ModelPath:     ocfg.ModelPath,
			TokenizerPath: ocfg.TokenizerPath,
			MaxSeqLen:     ocfg.MaxSeqLen,
			ModelID:       ocfg.ModelID,
		}, log)
		if err != nil {
			return nil, err
		}
		handle.Encoder = enc
		handle.closers = append(handle.closers, enc.Close)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if path := strings.TrimSpace(cfg.CacheFile); path != "" {
		cached, err := cache.Open(path, handle.Encoder, log)
		if err != nil {
			_ = handle.Close()
			return nil, err
		}
		handle.Encoder = cached
		handle.closers = append(handle.closers, cached.Close)
	}

	return handle, nil
}

func newReformulator(ctx context.Context, cfg *ReformulationConfig, log *zap.Logger) (ai.Reformulator, error) {
	if cfg == nil || !cfg.Enabled {
		return ai.Passthrough{}, nil
	}

	gcfg := cfg.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gcfg.APIKey,
		File:  gcfg.APIKeyFile,
		Env:   apiKeyEnv,
	})
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries, log)
	if err != nil {
		return nil, err
	}

	reformulatorLogger := logger.WithCommonFields(log, "reformulator", "gemini", generator.Model())
	return gemini.NewReformulator(generator, cfg.Timeout, gcfg.MaxLogLength, reformulatorLogger), nil
}

func loadCatalog(ctx context.Context, config *Config, skip []string, log *zap.Logger) ([]catalog.Entry, error) {
	rows, err := table.Read(config.Catalog, config.CatalogSheet)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	entries, skipped, err := catalog.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if skipped > 0 {
		log.Warn("skipping catalog rows without a name, URL or text to embed", zap.Int("skipped", skipped))
	}
	log.Info("catalog loaded", zap.String("path", config.Catalog), zap.Int("rows", len(rows)), zap.Int("entries", len(entries)))

	steps := filtering.Default()
	for _, name := range skip {
		if !filtering.DisableByName(steps, name, "skipped by flag") {
			log.Warn("unknown filter in skip list", zap.String("name", name))
		}
	}

	entries, err = filtering.Run(ctx, config.Filters, filtering.Deps{Logger: log}, steps, entries)
	if err != nil {
		return nil, err
	}
	for _, status := range filtering.Describe(steps) {
		log.Debug("filter status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}
	return entries, nil
}

// service is the query path together with what it owns.
type service struct {
	*recommender.Service
	indexes *index.Holder
	encoder *encoderHandle
}

func (s *service) Close() error { return s.encoder.Close() }

// newService loads the persisted index and wires the query path around it.
func newService(ctx context.Context, config *Config, log *zap.Logger) (*service, error) {
	encoder, err := newEncoder(ctx, config.Embedding, log)
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	idx, err := index.Load(config.IndexFile, encoder.Encoder, log)
	if err != nil {
		_ = encoder.Close()
		return nil, err
	}

	reformulator, err := newReformulator(ctx, config.Reformulation, log)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("create reformulator: %w", err)
	}

	indexes := index.NewHolder(idx)
	svc := recommender.New(indexes, reformulator, config.TopK, log,
		recommender.WithEncodeTimeout(config.Embedding.Timeout))
	return &service{Service: svc, indexes: indexes, encoder: encoder}, nil
}
