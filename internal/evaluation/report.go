package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report aggregates a harness run.
type Report struct {
	K                       int           `json:"k" yaml:"k"`
	TotalRows               int           `json:"total_rows" yaml:"total_rows"`
	Scored                  int           `json:"scored" yaml:"scored"`
	SkippedEmptyGroundTruth int           `json:"skipped_empty_ground_truth" yaml:"skipped_empty_ground_truth"`
	SkippedEmptyQuery       int           `json:"skipped_empty_query" yaml:"skipped_empty_query"`
	MeanRecall              float64       `json:"mean_recall" yaml:"mean_recall"`
	Distribution            []Bucket      `json:"distribution" yaml:"distribution"`
	Queries                 []QueryScore  `json:"queries" yaml:"queries"`
	Samples                 []DebugSample `json:"samples" yaml:"samples"`
}

// Bucket counts scored queries whose recall falls in a 10% band.
type Bucket struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// QueryScore is the recall of one scored query.
type QueryScore struct {
	Query  string  `json:"query" yaml:"query"`
	Recall float64 `json:"recall" yaml:"recall"`
}

// DebugSample keeps the identifiers of an early row for inspection.
type DebugSample struct {
	Query               string   `json:"query" yaml:"query"`
	RelevantRaw         []string `json:"relevant_raw" yaml:"relevant_raw"`
	RelevantNormalized  []string `json:"relevant_normalized" yaml:"relevant_normalized"`
	PredictedRaw        []string `json:"predicted_raw" yaml:"predicted_raw"`
	PredictedNormalized []string `json:"predicted_normalized" yaml:"predicted_normalized"`
	ExactHits           int      `json:"exact_hits" yaml:"exact_hits"`
	SlugHits            int      `json:"slug_hits" yaml:"slug_hits"`
}

func newReport(k, total int) *Report {
	return &Report{
		K:            k,
		TotalRows:    total,
		Distribution: []Bucket{},
		Queries:      []QueryScore{},
		Samples:      []DebugSample{},
	}
}

func (r *Report) add(query string, recall float64) {
	r.Scored++
	r.Queries = append(r.Queries, QueryScore{Query: query, Recall: recall})
}

func (r *Report) finish() {
	var counts [11]int
	var sum float64
	for _, q := range r.Queries {
		sum += q.Recall
		counts[bucketIndex(q.Recall)]++
	}
	if r.Scored > 0 {
		r.MeanRecall = sum / float64(r.Scored)
	}

	r.Distribution = r.Distribution[:0]
	for i, count := range counts {
		if count == 0 {
			continue
		}
		r.Distribution = append(r.Distribution, Bucket{Label: fmt.Sprintf("%d%%", i*10), Count: count})
	}
}

func bucketIndex(recall float64) int {
	return min(max(int(recall*10), 0), 10)
}

// Write renders the report in format. Unknown formats are an error.
func Write(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return WriteText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen, color.Bold)
	weak    = color.New(color.FgYellow)
	faint   = color.New(color.Faint)
)

// WriteText renders a human-readable report. Colors follow color.NoColor.
func WriteText(w io.Writer, r *Report) error {
	var b strings.Builder

	for i, s := range r.Samples {
		heading.Fprintf(&b, "Example %d\n", i+1)
		fmt.Fprintf(&b, "  Query: %s\n", s.Query)
		writeList(&b, "Relevant (raw)", s.RelevantRaw)
		writeList(&b, "Relevant (normalized)", s.RelevantNormalized)
		writeList(&b, "Predicted (raw)", s.PredictedRaw)
		writeList(&b, "Predicted (normalized)", s.PredictedNormalized)
		fmt.Fprintf(&b, "  Exact matches in top-%d: %d\n", r.K, s.ExactHits)
		fmt.Fprintf(&b, "  Slug matches in top-%d: %d\n\n", r.K, s.SlugHits)
	}

	if r.Scored == 0 {
		weak.Fprintln(&b, "No valid rows for evaluation")
	} else {
		recall := weak
		if r.MeanRecall >= 0.5 {
			recall = good
		}
		recall.Fprintf(&b, "Mean Recall@%d: %.4f\n", r.K, r.MeanRecall)
		fmt.Fprintf(&b, "Evaluated on %d queries\n", r.Scored)
	}
	faint.Fprintf(&b, "Skipped: %d without ground truth, %d without query\n", r.SkippedEmptyGroundTruth, r.SkippedEmptyQuery)

	if len(r.Distribution) > 0 {
		parts := make([]string, len(r.Distribution))
		for i, bucket := range r.Distribution {
			parts[i] = fmt.Sprintf("%s: %d", bucket.Label, bucket.Count)
		}
		fmt.Fprintf(&b, "Recall distribution: %s\n", strings.Join(parts, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, title string, items []string) {
	faint.Fprintf(b, "  %s:\n", title)
	for i, item := range items {
		fmt.Fprintf(b, "    %d. %s\n", i+1, item)
	}
}
