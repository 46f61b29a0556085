package gemini

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	queryHeader         = "Query:\n"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Reformulator asks a generative model for the hiring intent behind a query
// and falls back to the raw query when that fails.
type Reformulator struct {
	generator contentGenerator
	timeout   time.Duration
	logger    *zap.Logger
	maxLogLen int
	fallbacks atomic.Int64
}

// NewReformulator wires a generator. A zero timeout leaves the caller's
// deadline in charge.
func NewReformulator(generator contentGenerator, timeout time.Duration, maxLogLength int, logger *zap.Logger) *Reformulator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reformulator{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Reformulate returns the model's rewrite of rawQuery, or rawQuery itself
// when the model is unavailable or returns nothing usable.
func (r *Reformulator) Reformulate(ctx context.Context, rawQuery string) string {
	if strings.TrimSpace(rawQuery) == "" {
		return rawQuery
	}
	if r.generator == nil {
		return r.fallback(rawQuery, errors.New("no generator configured"))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	message := queryHeader + strings.TrimSpace(rawQuery)
	r.logger.Debug("reformulation request",
		zap.Int("query_length", utf8.RuneCountInString(rawQuery)),
		zap.String("query_preview", utils.TruncateForLog(rawQuery, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, promptTemplate, message)
	if err != nil {
		return r.fallback(rawQuery, err)
	}

	refined := cleanResponse(raw)
	if refined == "" {
		return r.fallback(rawQuery, errors.New("model returned no usable text"))
	}

	r.logger.Debug("reformulation response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(refined, r.maxLogLen)),
	)
	return refined
}

// Fallbacks reports how many queries were passed through unchanged.
func (r *Reformulator) Fallbacks() int64 {
	return r.fallbacks.Load()
}

func (r *Reformulator) fallback(rawQuery string, cause error) string {
	total := r.fallbacks.Add(1)
	r.logger.Warn("query reformulation failed, using raw query",
		zap.Int64("fallback_total", total),
		zap.String("query_preview", utils.TruncateForLog(rawQuery, r.maxLogLen)),
		zap.Error(cause),
	)
	return rawQuery
}

func cleanResponse(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```text")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`\"' \t\r\n")
	return strings.Join(strings.Fields(raw), " ")
}
