package evaluation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

func sampleReport() *Report {
	r := newReport(10, 3)
	r.add("java developer", 1)
	r.add("sales", 0)
	r.SkippedEmptyGroundTruth = 1
	r.Samples = append(r.Samples, DebugSample{
		Query:               "java developer",
		RelevantRaw:         []string{"https://a.com/java/"},
		RelevantNormalized:  []string{"a.com/java"},
		PredictedRaw:        []string{"http://A.com/java"},
		PredictedNormalized: []string{"a.com/java"},
		ExactHits:           1,
		SlugHits:            1,
	})
	r.finish()
	return r
}

func TestWriteText(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	if err := Write(&buf, sampleReport(), FormatText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Example 1",
		"Query: java developer",
		"1. a.com/java",
		"Exact matches in top-10: 1",
		"Mean Recall@10: 0.5000",
		"Evaluated on 2 queries",
		"Skipped: 1 without ground truth, 0 without query",
		"Recall distribution: 0%: 1, 100%: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSONAndYAML(t *testing.T) {
	var jsonBuf bytes.Buffer
	if err := Write(&jsonBuf, sampleReport(), FormatJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded.MeanRecall != 0.5 || decoded.Scored != 2 || len(decoded.Samples) != 1 {
		t.Fatalf("unexpected json report: %+v", decoded)
	}

	var yamlBuf bytes.Buffer
	if err := Write(&yamlBuf, sampleReport(), "YAML"); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var fromYAML Report
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if fromYAML.SkippedEmptyGroundTruth != 1 || fromYAML.Queries[0].Query != "java developer" {
		t.Fatalf("unexpected yaml report: %+v", fromYAML)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, sampleReport(), "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
