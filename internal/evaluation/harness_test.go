package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mapPredictor struct {
	answers map[string][]string
	err     error
	calls   atomic.Int32
	delay   func(query string) time.Duration
}

func (m *mapPredictor) Predict(_ context.Context, query string, k int) ([]string, error) {
	m.calls.Add(1)
	if m.delay != nil {
		time.Sleep(m.delay(query))
	}
	if m.err != nil {
		return nil, m.err
	}
	out := m.answers[query]
	return out[:min(k, len(out))], nil
}

func TestHarnessMeanRecall(t *testing.T) {
	predictor := &mapPredictor{answers: map[string][]string{
		"java":  {"https://x.com/x", "https://s.com/a/", "y.com", "HTTP://S.COM/B", "z", "s.com/c", "w", "v", "u", "t"},
		"sales": {"x", "y", "z"},
	}}
	h := NewHarness(predictor, Config{K: 10}, zap.NewNop())

	report, err := h.Run(context.Background(), []Row{
		{Query: "java", Relevant: []string{"https://s.com/a", "https://s.com/b/", "https://s.com/c"}},
		{Query: "sales", Relevant: []string{"https://s.com/sales"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Scored != 2 {
		t.Fatalf("expected 2 scored rows, got %d", report.Scored)
	}
	if report.Queries[0].Recall != 1.0 || report.Queries[1].Recall != 0.0 {
		t.Fatalf("unexpected per-query recall: %+v", report.Queries)
	}
	if report.MeanRecall != 0.5 {
		t.Fatalf("mean recall = %v, want 0.5", report.MeanRecall)
	}
}

func TestHarnessExcludesEmptyGroundTruth(t *testing.T) {
	predictor := &mapPredictor{answers: map[string][]string{"q1": {"a.com/1"}}}
	h := NewHarness(predictor, Config{}, zap.NewNop())

	report, err := h.Run(context.Background(), []Row{
		{Query: "q1", Relevant: []string{"https://a.com/1"}},
		{Query: "q2", Relevant: nil},
		{Query: "q3", Relevant: []string{"  "}},
		{Query: "   ", Relevant: []string{"a.com/1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Scored != 1 || report.MeanRecall != 1.0 {
		t.Fatalf("expected one perfect row, got scored=%d mean=%v", report.Scored, report.MeanRecall)
	}
	if report.SkippedEmptyGroundTruth != 2 || report.SkippedEmptyQuery != 1 {
		t.Fatalf("unexpected skip counts: %+v", report)
	}
	if predictor.calls.Load() != 1 {
		t.Fatalf("skipped rows must not be predicted, got %d calls", predictor.calls.Load())
	}
}

func TestHarnessParallelKeepsRowOrder(t *testing.T) {
	answers := make(map[string][]string)
	var rows []Row
	for i := range 12 {
		q := fmt.Sprintf("q%02d", i)
		answers[q] = []string{fmt.Sprintf("a.com/%d", i)}
		relevant := []string{fmt.Sprintf("https://a.com/%d/", i)}
		if i == 1 {
			relevant = nil
		}
		rows = append(rows, Row{Query: q, Relevant: relevant})
	}

	predictor := &mapPredictor{
		answers: answers,
		delay: func(query string) time.Duration {
			var n int
			_, _ = fmt.Sscanf(query, "q%d", &n)
			return time.Duration(12-n) * time.Millisecond
		},
	}

	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHarness(predictor, Config{K: 5, Workers: 4}, zap.New(core))

	report, err := h.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Scored != 11 {
		t.Fatalf("expected 11 scored rows, got %d", report.Scored)
	}
	for i, q := range report.Queries {
		want := rows[i].Query
		if i >= 1 {
			want = rows[i+1].Query
		}
		if q.Query != want {
			t.Fatalf("query %d out of order: got %q want %q", i, q.Query, want)
		}
	}

	if len(report.Samples) != 3 {
		t.Fatalf("expected 3 debug samples, got %d", len(report.Samples))
	}
	for i, want := range []string{"q00", "q02", "q03"} {
		if report.Samples[i].Query != want {
			t.Fatalf("sample %d: got %q want %q", i, report.Samples[i].Query, want)
		}
		if report.Samples[i].ExactHits != 1 || report.Samples[i].SlugHits != 1 {
			t.Fatalf("sample %d: unexpected hits %+v", i, report.Samples[i])
		}
	}

	if got := logs.FilterMessage("evaluation progress").Len(); got != 1 {
		t.Fatalf("expected one progress entry for 12 rows, got %d", got)
	}
}

func TestHarnessSlugHitsFindNearMisses(t *testing.T) {
	predictor := &mapPredictor{answers: map[string][]string{
		"java": {"https://www.shl.com/products/view/java-8-new/"},
	}}
	h := NewHarness(predictor, Config{}, zap.NewNop())

	report, err := h.Run(context.Background(), []Row{{
		Query:    "java",
		Relevant: []string{"https://www.shl.com/solutions/products/view/java-8-new/"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sample := report.Samples[0]
	if sample.ExactHits != 0 || sample.SlugHits != 1 {
		t.Fatalf("expected slug-only match, got %+v", sample)
	}
	if report.MeanRecall != 0 {
		t.Fatalf("slug matches must not count towards recall, got %v", report.MeanRecall)
	}
}

func TestHarnessPropagatesPredictionErrors(t *testing.T) {
	predictor := &mapPredictor{err: errors.New("encoding failed")}
	h := NewHarness(predictor, Config{}, zap.NewNop())

	_, err := h.Run(context.Background(), []Row{{Query: "java", Relevant: []string{"a.com"}}})
	if err == nil {
		t.Fatalf("expected prediction error")
	}
}

func TestHarnessNoScorableRows(t *testing.T) {
	h := NewHarness(&mapPredictor{}, Config{}, zap.NewNop())

	report, err := h.Run(context.Background(), []Row{{Query: "q", Relevant: nil}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Scored != 0 || report.MeanRecall != 0 || math.IsNaN(report.MeanRecall) {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestDistributionBuckets(t *testing.T) {
	r := newReport(10, 4)
	r.add("a", 0)
	r.add("b", 1.0/3.0)
	r.add("c", 0.35)
	r.add("d", 1)
	r.finish()

	want := []Bucket{{"0%", 1}, {"30%", 2}, {"100%", 1}}
	if len(r.Distribution) != len(want) {
		t.Fatalf("unexpected distribution: %+v", r.Distribution)
	}
	for i := range want {
		if r.Distribution[i] != want[i] {
			t.Fatalf("bucket %d: got %+v want %+v", i, r.Distribution[i], want[i])
		}
	}
}
