// Package recommender runs the query path: reformulate, encode, rank.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/ai"
	"github.com/spigell/assessment-recommender/internal/index"
	"github.com/spigell/assessment-recommender/internal/ranking"
)

var (
	// ErrEmptyQuery is returned for queries that are blank after trimming.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrNotReady is returned before an index has been built or loaded.
	ErrNotReady = errors.New("index is not ready")
)

// Recommendation is the outcome of one query.
type Recommendation struct {
	Query        string           `json:"query"`
	RefinedQuery string           `json:"refined_query"`
	Results      []ranking.Result `json:"results"`
}

// Service answers queries against whatever index the holder currently serves.
type Service struct {
	indexes       *index.Holder
	reformulator  ai.Reformulator
	topK          int
	encodeTimeout time.Duration
	logger        *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithEncodeTimeout bounds the query encoding call.
func WithEncodeTimeout(d time.Duration) Option {
	return func(s *Service) { s.encodeTimeout = d }
}

// New creates a Service. A nil reformulator passes queries through.
func New(indexes *index.Holder, reformulator ai.Reformulator, topK int, logger *zap.Logger, opts ...Option) *Service {
	if reformulator == nil {
		reformulator = ai.Passthrough{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		indexes:      indexes,
		reformulator: reformulator,
		topK:         topK,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend ranks the catalog for query using the configured top-k.
func (s *Service) Recommend(ctx context.Context, query string) (*Recommendation, error) {
	return s.RecommendK(ctx, query, s.topK)
}

// RecommendK ranks the catalog for query returning at most k entries.
func (s *Service) RecommendK(ctx context.Context, query string, k int) (*Recommendation, error) {
	if k < 1 {
		return nil, ranking.ErrInvalidTopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	idx := s.indexes.Current()
	if idx == nil {
		return nil, ErrNotReady
	}

	rec := &Recommendation{Query: query, RefinedQuery: query, Results: []ranking.Result{}}
	if idx.Size() == 0 {
		s.logger.Debug("index is empty, nothing to rank")
		return rec, nil
	}

	refined := s.reformulator.Reformulate(ctx, query)
	if strings.TrimSpace(refined) == "" {
		refined = query
	}
	rec.RefinedQuery = refined

	encodeCtx := ctx
	if s.encodeTimeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, s.encodeTimeout)
		defer cancel()
	}

	vec, err := idx.EncodeQuery(encodeCtx, refined)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	results, err := ranking.Rank(vec, idx, k)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	rec.Results = results

	s.logger.Debug("query ranked",
		zap.String("refined_query", refined),
		zap.Int("results", len(results)),
	)
	return rec, nil
}
