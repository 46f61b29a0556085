package catalog

import "strings"

// Support is a tri-state capability flag.
type Support int

const (
	SupportUnknown Support = iota
	SupportYes
	SupportNo
)

// ParseSupport maps catalog flag spellings onto Support. Anything it does not
// recognise is unknown.
func ParseSupport(raw string) Support {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1":
		return SupportYes
	case "no", "n", "false", "0":
		return SupportNo
	default:
		return SupportUnknown
	}
}

// String renders the flag the way the catalog does. Unknown renders empty.
func (s Support) String() string {
	switch s {
	case SupportYes:
		return "Yes"
	case SupportNo:
		return "No"
	default:
		return ""
	}
}

// Entry is a single catalog assessment. Entries are values; copy them freely
// but do not mutate an Entry that is owned by an index.
type Entry struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	Kind            string   `json:"kind,omitempty"`
	RemoteSupport   Support  `json:"remote_support"`
	AdaptiveSupport Support  `json:"adaptive_support"`
	TestTypeLabels  []string `json:"test_type_labels"`
	CombinedText    string   `json:"combined_text"`
}

// NewEntry builds an entry and derives its combined text.
func NewEntry(id, name, url string, remote, adaptive Support, labels []string) Entry {
	e := Entry{
		ID:              strings.TrimSpace(id),
		Name:            strings.TrimSpace(name),
		URL:             strings.TrimSpace(url),
		RemoteSupport:   remote,
		AdaptiveSupport: adaptive,
		TestTypeLabels:  append([]string(nil), labels...),
	}
	e.CombinedText = ComposeText(e)
	return e
}

// MarshalText renders the flag as "Yes", "No" or an empty string.
func (s Support) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText and accepts every spelling
// ParseSupport does.
func (s *Support) UnmarshalText(text []byte) error {
	*s = ParseSupport(string(text))
	return nil
}
