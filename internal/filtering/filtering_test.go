package filtering

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/assessment-recommender/internal/catalog"
)

func entry(name, url, kind string) catalog.Entry {
	e := catalog.NewEntry("", name, url, catalog.SupportYes, catalog.SupportNo, nil)
	e.Kind = kind
	return e
}

func names(entries []catalog.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestRunAppliesStepsInOrder(t *testing.T) {
	dir := t.TempDir()
	excludePath := filepath.Join(dir, "exclude.yaml")
	if err := os.WriteFile(excludePath, []byte("urls:\n  - https://shl.com/view/sales/\n"), 0o600); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	entries := []catalog.Entry{
		entry("Java", "https://shl.com/view/java/", "individual test solutions"),
		entry("Java (dup)", "http://SHL.com/view/java", "individual test solutions"),
		entry("Manager Solution", "https://shl.com/view/manager/", "Pre-packaged Job Solutions"),
		entry("Sales", "https://shl.com/view/sales", "individual test solutions"),
		entry("Python", "https://shl.com/view/python", ""),
	}

	cfg := &Config{
		Dedupe:       true,
		ExcludeKinds: []string{"pre_packaged job solutions"},
		ExcludeFile:  excludePath,
	}

	core, logs := observer.New(zapcore.InfoLevel)
	got, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core)}, Default(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Java", "Python"}
	if gotNames := names(got); len(gotNames) != len(want) || gotNames[0] != want[0] || gotNames[1] != want[1] {
		t.Fatalf("unexpected entries: %v", gotNames)
	}

	steps := logs.FilterMessage("filter step").All()
	if len(steps) != 3 {
		t.Fatalf("expected 3 step logs, got %d", len(steps))
	}
	first := steps[0].ContextMap()
	if first["name"] != "dedupe_url" || first["initial"] != int64(5) || first["dropped"] != int64(1) || first["left"] != int64(4) {
		t.Fatalf("unexpected dedupe step: %v", first)
	}
	if last := steps[2].ContextMap(); last["name"] != "exclude_file" || last["left"] != int64(2) {
		t.Fatalf("unexpected exclude_file step: %v", last)
	}
}

func TestDedupeCanBeDisabled(t *testing.T) {
	entries := []catalog.Entry{
		entry("A", "https://x.com/a", ""),
		entry("A again", "https://x.com/a/", ""),
	}

	got, err := Run(context.Background(), &Config{Dedupe: false}, Deps{}, Default(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected duplicates to be kept, got %d entries", len(got))
	}
}

func TestExcludeFileAcceptsEmptyAndJSON(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	jsonFile := filepath.Join(dir, "exclude.json")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(jsonFile, []byte(`{"urls": ["x.com/a"]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries := []catalog.Entry{entry("A", "https://x.com/a", ""), entry("B", "https://x.com/b", "")}

	got, err := Run(context.Background(), &Config{ExcludeFile: empty}, Deps{}, []Filter{NewExcludeFile()}, entries)
	if err != nil || len(got) != 2 {
		t.Fatalf("empty exclude file: got %d entries, err %v", len(got), err)
	}

	got, err = Run(context.Background(), &Config{ExcludeFile: jsonFile}, Deps{}, []Filter{NewExcludeFile()}, entries)
	if err != nil {
		t.Fatalf("json exclude file: %v", err)
	}
	if len(got) != 1 || got[0].Name != "B" {
		t.Fatalf("unexpected entries: %v", names(got))
	}
}

func TestExcludeFileMissing(t *testing.T) {
	cfg := &Config{ExcludeFile: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, err := Run(context.Background(), cfg, Deps{}, []Filter{NewExcludeFile()}, nil); err == nil {
		t.Fatalf("expected error for missing exclude file")
	}
}

func TestDescribeAndDisableByName(t *testing.T) {
	steps := Default()
	DisableByName(steps, "dedupe_url", "flag")

	statuses := Describe(steps)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "dedupe_url" || statuses[0].Enabled || statuses[0].Reason != "flag" {
		t.Fatalf("unexpected dedupe status: %+v", statuses[0])
	}
	if !statuses[1].Enabled {
		t.Fatalf("exclude_kinds must stay enabled")
	}

	if DisableByName(steps, "ai_fit", "flag") {
		t.Fatalf("unknown filter must not be reported as found")
	}
}

func TestDisabledStepIsSkipped(t *testing.T) {
	steps := Default()
	if !DisableByName(steps, "exclude_kinds", "skip-filter flag") {
		t.Fatalf("exclude_kinds not found")
	}

	entries := []catalog.Entry{entry("A", "https://x.com/a", "Pre-packaged Job Solutions")}
	cfg := &Config{Dedupe: true, ExcludeKinds: []string{"pre_packaged job solutions"}}

	got, err := Run(context.Background(), cfg, Deps{}, steps, entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("disabled step must not drop entries, got %v", names(got))
	}
	if status := Describe(steps)[1]; status.Enabled || status.Reason != "skip-filter flag" {
		t.Fatalf("unexpected status: %+v", status)
	}
}
