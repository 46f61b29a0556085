package catalog

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"
)

// testTypeKeys maps the single letter test type keys used on the catalog site.
var testTypeKeys = map[string]string{
	"A": "Ability & Aptitude",
	"B": "Biodata & Situational Judgement",
	"C": "Competencies",
	"D": "Development & 360",
	"E": "Assessment Exercises",
	"K": "Knowledge & Skills",
	"P": "Personality & Behavior",
	"S": "Simulations",
}

// columnAliases maps normalised header names onto row fields. Catalog snapshots
// differ in capitalisation and naming, this is the only place that knows.
var columnAliases = map[string]string{
	"id":                     "id",
	"entity_id":              "id",
	"assessment_name":        "name",
	"name":                   "name",
	"url":                    "url",
	"link":                   "url",
	"remote_testing_support": "remote",
	"remote":                 "remote",
	"remote_support":         "remote",
	"adaptive_irt":           "adaptive",
	"adaptive":               "adaptive",
	"adaptive_support":       "adaptive",
	"test_type":              "test_type",
	"test_types":             "test_type",
	"test_type_keys":         "test_type_keys",
	"catalog_type":           "kind",
	"combined_text":          "combined_text",
}

type row struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	URL          string `mapstructure:"url"`
	Remote       string `mapstructure:"remote"`
	Adaptive     string `mapstructure:"adaptive"`
	TestType     string `mapstructure:"test_type"`
	TestTypeKeys string `mapstructure:"test_type_keys"`
	Kind         string `mapstructure:"kind"`
	CombinedText string `mapstructure:"combined_text"`
}

// FromRow adapts one tabular catalog row into an Entry. ok is false for rows
// that carry neither a name nor a URL, and for rows with nothing to embed.
func FromRow(fields map[string]string) (Entry, bool, error) {
	canonical := make(map[string]string, len(fields))
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		value := fields[key]
		alias, known := columnAliases[headerKey(key)]
		if !known {
			continue
		}
		// First non-empty value wins when a snapshot carries both spellings.
		if existing := canonical[alias]; existing != "" {
			continue
		}
		canonical[alias] = strings.TrimSpace(value)
	}

	var r row
	if err := mapstructure.Decode(canonical, &r); err != nil {
		return Entry{}, false, fmt.Errorf("decode catalog row: %w", err)
	}

	if r.Name == "" && r.URL == "" {
		return Entry{}, false, nil
	}

	labels := splitLabels(r.TestType)
	if len(labels) == 0 {
		labels = expandKeys(r.TestTypeKeys)
	}

	entry := NewEntry(r.ID, r.Name, r.URL, ParseSupport(r.Remote), ParseSupport(r.Adaptive), labels)
	entry.Kind = r.Kind
	if text := NormalizeText(r.CombinedText); text != "" {
		entry.CombinedText = text
	}
	if entry.CombinedText == "" {
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// FromRows adapts all rows, skipping the ones FromRow rejects. skipped
// counts the rejected rows.
func FromRows(rows []map[string]string) (entries []Entry, skipped int, err error) {
	entries = make([]Entry, 0, len(rows))
	for i, fields := range rows {
		entry, ok, err := FromRow(fields)
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}

func headerKey(raw string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func splitLabels(raw string) []string {
	var labels []string
	for _, label := range strings.Split(raw, ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func expandKeys(raw string) []string {
	keys := splitLabels(raw)
	for i, key := range keys {
		if name, ok := testTypeKeys[strings.ToUpper(key)]; ok {
			keys[i] = name
		}
	}
	return keys
}
