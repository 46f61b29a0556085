package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const labelSeparator = ", "

// ComposeText joins name, test type labels, remote support and adaptive support,
// in that order, into the text that gets embedded. Absent fields contribute
// nothing and the result is NFKC-normalised with whitespace collapsed.
func ComposeText(e Entry) string {
	parts := []string{
		e.Name,
		strings.Join(e.TestTypeLabels, labelSeparator),
		e.RemoteSupport.String(),
		e.AdaptiveSupport.String(),
	}
	return NormalizeText(strings.Join(parts, " "))
}

// NormalizeText applies NFKC, drops control characters and collapses whitespace.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.Join(strings.Fields(normed), " ")
}
