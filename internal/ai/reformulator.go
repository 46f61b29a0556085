// Package ai holds the contracts for language-model assisted query handling.
package ai

import (
	"context"
	"strings"
)

// Reformulator rewrites a free-text hiring query into a concise statement of
// intent. Implementations never fail: on any problem they return the raw
// query unchanged.
type Reformulator interface {
	Reformulate(ctx context.Context, rawQuery string) string
}

// Passthrough is a Reformulator that only trims the query.
type Passthrough struct{}

// Reformulate returns rawQuery without surrounding whitespace.
func (Passthrough) Reformulate(_ context.Context, rawQuery string) string {
	return strings.TrimSpace(rawQuery)
}
