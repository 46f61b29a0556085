package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/recommender"
)

const (
	defaultK            = 10
	defaultDebugSamples = 3
	progressEvery       = 10
	previewLimit        = 3
)

// Predictor returns the identifiers of the top k catalog entries for query.
type Predictor interface {
	Predict(ctx context.Context, query string, k int) ([]string, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, query string, k int) ([]string, error)

func (f PredictorFunc) Predict(ctx context.Context, query string, k int) ([]string, error) {
	return f(ctx, query, k)
}

// RecommenderPredictor predicts with the URLs of a recommender's results.
func RecommenderPredictor(svc *recommender.Service) Predictor {
	return PredictorFunc(func(ctx context.Context, query string, k int) ([]string, error) {
		rec, err := svc.RecommendK(ctx, query, k)
		if err != nil {
			return nil, err
		}
		urls := make([]string, len(rec.Results))
		for i, res := range rec.Results {
			urls[i] = res.Entry.URL
		}
		return urls, nil
	})
}

// Config tunes a harness run.
type Config struct {
	K            int
	DebugSamples int
	Workers      int
}

// Harness drives a Predictor over labeled rows and aggregates recall.
type Harness struct {
	predictor Predictor
	cfg       Config
	logger    *zap.Logger
}

// NewHarness applies defaults for zero config values.
func NewHarness(predictor Predictor, cfg Config, logger *zap.Logger) *Harness {
	if cfg.K <= 0 {
		cfg.K = defaultK
	}
	if cfg.DebugSamples < 0 {
		cfg.DebugSamples = 0
	} else if cfg.DebugSamples == 0 {
		cfg.DebugSamples = defaultDebugSamples
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{predictor: predictor, cfg: cfg, logger: logger}
}

type rowState int

const (
	rowScorable rowState = iota
	rowEmptyGroundTruth
	rowEmptyQuery
)

type preparedRow struct {
	query       string
	relevantRaw []string
	relevant    []string
	state       rowState
}

// Run evaluates rows in order. Predictions may run in parallel; scoring,
// progress and sample selection follow row order.
func (h *Harness) Run(ctx context.Context, rows []Row) (*Report, error) {
	started := time.Now()

	prepared := make([]preparedRow, len(rows))
	for i, row := range rows {
		prepared[i] = prepare(row)
	}

	mapper := iter.Mapper[preparedRow, []string]{MaxGoroutines: h.cfg.Workers}
	predictions, err := mapper.MapErr(prepared, func(p *preparedRow) ([]string, error) {
		if p.state != rowScorable {
			return nil, nil
		}
		predicted, err := h.predictor.Predict(ctx, p.query, h.cfg.K)
		if err != nil {
			return nil, fmt.Errorf("predict %q: %w", p.query, err)
		}
		return predicted, nil
	})
	if err != nil {
		return nil, err
	}

	report := newReport(h.cfg.K, len(rows))
	for i, p := range prepared {
		switch p.state {
		case rowEmptyGroundTruth:
			report.SkippedEmptyGroundTruth++
			h.logger.Debug("skipping row without ground truth", zap.Int("row", i+1))
		case rowEmptyQuery:
			report.SkippedEmptyQuery++
			h.logger.Debug("skipping row without query", zap.Int("row", i+1))
		default:
			h.score(report, p, predictions[i])
		}

		if (i+1)%progressEvery == 0 {
			h.logger.Info("evaluation progress", zap.Int("processed", i+1), zap.Int("total", len(rows)))
		}
	}

	report.finish()
	h.logger.Info("evaluation finished",
		zap.Int("scored", report.Scored),
		zap.Int("skipped_empty_ground_truth", report.SkippedEmptyGroundTruth),
		zap.Int("skipped_empty_query", report.SkippedEmptyQuery),
		zap.Float64("mean_recall", report.MeanRecall),
		zap.Duration("took", time.Since(started)),
	)
	return report, nil
}

func prepare(row Row) preparedRow {
	p := preparedRow{
		query:       strings.TrimSpace(row.Query),
		relevantRaw: row.Relevant,
		relevant:    NormalizeAll(row.Relevant),
	}
	switch {
	case len(p.relevant) == 0:
		p.state = rowEmptyGroundTruth
	case p.query == "":
		p.state = rowEmptyQuery
	default:
		p.state = rowScorable
	}
	return p
}

func (h *Harness) score(report *Report, p preparedRow, predictedRaw []string) {
	predicted := NormalizeAll(predictedRaw)
	relevant := toSet(p.relevant)

	recall, _ := RecallAtK(predicted, relevant, h.cfg.K)
	report.add(p.query, recall)

	if len(report.Samples) >= h.cfg.DebugSamples {
		return
	}

	top := predicted[:min(h.cfg.K, len(predicted))]
	relevantSlugs := make(map[string]struct{}, len(p.relevant))
	for _, id := range p.relevant {
		if slug := ExtractSlug(id); slug != "" {
			relevantSlugs[slug] = struct{}{}
		}
	}
	predictedSlugs := make([]string, 0, len(top))
	for _, id := range top {
		predictedSlugs = append(predictedSlugs, ExtractSlug(id))
	}

	report.Samples = append(report.Samples, DebugSample{
		Query:               p.query,
		RelevantRaw:         head(p.relevantRaw),
		RelevantNormalized:  head(p.relevant),
		PredictedRaw:        head(predictedRaw),
		PredictedNormalized: head(predicted),
		ExactHits:           countHits(top, relevant),
		SlugHits:            countHits(predictedSlugs, relevantSlugs),
	})
}

func head(items []string) []string {
	return append([]string(nil), items[:min(previewLimit, len(items))]...)
}
