// Package evaluation measures ranking quality against labeled queries.
package evaluation

import (
	"regexp"
	"strings"
	"unicode"
)

var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)

// NormalizeIdentifier reduces a URL to lower-case host and path so that
// scheme, trailing slashes, query strings and fragments do not affect
// matching. Blank input yields "". Applying it twice changes nothing.
func NormalizeIdentifier(raw string) string {
	current := normalizeOnce(raw)
	// A pass that changes its input either drops runes or only lowercases,
	// so this reaches a fixed point.
	for {
		next := normalizeOnce(current)
		if next == current {
			return current
		}
		current = next
	}
}

func normalizeOnce(raw string) string {
	s := strings.ToLower(raw)
	for {
		s = strings.TrimSpace(s)
		if loc := schemePattern.FindStringIndex(s); loc != nil {
			s = s[loc[1]:]
			continue
		}
		if strings.HasPrefix(s, "//") {
			s = strings.TrimLeft(s, "/")
			continue
		}
		break
	}

	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	host, path, _ := strings.Cut(s, "/")
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	host = strings.TrimSpace(host)
	path = strings.TrimRightFunc(path, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})

	switch {
	case path == "":
		return host
	case host == "":
		return "/" + path
	default:
		return host + "/" + path
	}
}

// ExtractSlug returns the last non-empty path segment of the normalized URL.
func ExtractSlug(raw string) string {
	normalized := NormalizeIdentifier(raw)
	_, path, found := strings.Cut(normalized, "/")
	if !found {
		return ""
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// NormalizeAll normalizes ids, dropping the ones that normalize to "".
func NormalizeAll(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := NormalizeIdentifier(id); n != "" {
			out = append(out, n)
		}
	}
	return out
}
