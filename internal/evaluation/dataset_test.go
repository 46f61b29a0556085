package evaluation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadDatasetCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	content := "query,assessment_url\n" +
		"Java developer,\"https://a.com/java/, https://a.com/sql/\"\n" +
		"Sales lead,https://a.com/sales\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := ReadDataset(path, DatasetOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Query != "Java developer" || len(rows[0].Relevant) != 2 || rows[0].Relevant[1] != "https://a.com/sql/" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
}

func TestRowsFromRecordsMissingColumn(t *testing.T) {
	records := []map[string]string{{"Query": "x"}}
	if _, err := RowsFromRecords(records, "", ""); err == nil {
		t.Fatalf("expected error for missing relevant column")
	}
}

func TestGroupByQuery(t *testing.T) {
	rows := []Row{
		{Query: "java", Relevant: []string{"u1"}},
		{Query: "sales", Relevant: []string{"u3"}},
		{Query: "java ", Relevant: []string{"u2", "u1"}},
	}

	grouped := GroupByQuery(rows)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 grouped rows, got %d", len(grouped))
	}
	if grouped[0].Query != "java" || len(grouped[0].Relevant) != 2 || grouped[0].Relevant[1] != "u2" {
		t.Fatalf("unexpected grouping: %+v", grouped[0])
	}
	if grouped[1].Query != "sales" {
		t.Fatalf("expected first-appearance order, got %+v", grouped)
	}
}

func TestColumnPrefersExactHeader(t *testing.T) {
	record := map[string]string{"query": "lower", "QUERY": "upper", "Query": "exact"}
	if got, ok := Column(record, "Query"); !ok || got != "exact" {
		t.Fatalf("expected exact header, got %q (%v)", got, ok)
	}

	delete(record, "Query")
	for range 20 {
		if got, _ := Column(record, "Query"); got != "upper" {
			t.Fatalf("expected the first sorted header to win, got %q", got)
		}
	}

	if _, ok := Column(record, "Assessment_url"); ok {
		t.Fatalf("missing column must not be found")
	}
}
