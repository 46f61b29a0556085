package evaluation

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spigell/assessment-recommender/internal/table"
	"github.com/spigell/assessment-recommender/internal/utils"
)

const (
	DefaultQueryColumn    = "Query"
	DefaultRelevantColumn = "Assessment_url"
)

// Row is one labeled query as read from the dataset.
type Row struct {
	Query    string
	Relevant []string
}

// DatasetOptions selects the sheet and columns to read.
type DatasetOptions struct {
	Sheet          string
	QueryColumn    string
	RelevantColumn string
	GroupByQuery   bool
}

// ReadDataset loads labeled rows from a CSV or XLSX file. The relevant column
// holds one or more comma-separated URLs.
func ReadDataset(path string, opts DatasetOptions) ([]Row, error) {
	records, err := table.Read(path, opts.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := RowsFromRecords(records, opts.QueryColumn, opts.RelevantColumn)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	if opts.GroupByQuery {
		rows = GroupByQuery(rows)
	}
	return rows, nil
}

// RowsFromRecords maps header-keyed records onto rows. Column names match
// case-insensitively; empty names fall back to the defaults.
func RowsFromRecords(records []map[string]string, queryColumn, relevantColumn string) ([]Row, error) {
	if queryColumn == "" {
		queryColumn = DefaultQueryColumn
	}
	if relevantColumn == "" {
		relevantColumn = DefaultRelevantColumn
	}

	rows := make([]Row, 0, len(records))
	for i, record := range records {
		query, ok := Column(record, queryColumn)
		if !ok {
			return nil, fmt.Errorf("row %d: column %q not found", i+1, queryColumn)
		}
		relevant, ok := Column(record, relevantColumn)
		if !ok {
			return nil, fmt.Errorf("row %d: column %q not found", i+1, relevantColumn)
		}
		rows = append(rows, Row{Query: query, Relevant: utils.SplitList(relevant)})
	}
	return rows, nil
}

// GroupByQuery merges rows sharing a query, keeping first-appearance order
// for both queries and URLs.
func GroupByQuery(rows []Row) []Row {
	positions := make(map[string]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row.Query)
		pos, ok := positions[key]
		if !ok {
			positions[key] = len(out)
			out = append(out, Row{Query: row.Query, Relevant: append([]string(nil), row.Relevant...)})
			continue
		}
		for _, url := range row.Relevant {
			if !slices.Contains(out[pos].Relevant, url) {
				out[pos].Relevant = append(out[pos].Relevant, url)
			}
		}
	}
	return out
}

// Column returns the value of column in record. An exact header match wins;
// otherwise the first header in sorted order that matches case-insensitively.
func Column(record map[string]string, column string) (string, bool) {
	if v, ok := record[column]; ok {
		return v, true
	}
	for _, name := range slices.Sorted(maps.Keys(record)) {
		if strings.EqualFold(strings.TrimSpace(name), column) {
			return record[name], true
		}
	}
	return "", false
}
