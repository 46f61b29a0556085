package filtering

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
)

type excludeKindsFilter struct {
	switchable
	kinds map[string]struct{}
}

// NewExcludeKinds removes entries whose catalog kind is configured for exclusion,
// for example pre-packaged job solutions.
func NewExcludeKinds() Filter {
	return &excludeKindsFilter{}
}

func (f *excludeKindsFilter) Name() string { return "exclude_kinds" }

func (f *excludeKindsFilter) Validate(cfg *Config) error {
	f.kinds = make(map[string]struct{})
	if cfg == nil {
		return nil
	}
	for _, kind := range cfg.ExcludeKinds {
		if kind = normalizeKind(kind); kind != "" {
			f.kinds[kind] = struct{}{}
		}
	}
	return nil
}

func (f *excludeKindsFilter) Apply(_ context.Context, deps Deps, entries []catalog.Entry) ([]catalog.Entry, Step, error) {
	if len(f.kinds) == 0 {
		return entries, newStep(len(entries), len(entries)), nil
	}

	kept, dropped := keep(entries, func(e catalog.Entry) bool {
		_, excluded := f.kinds[normalizeKind(e.Kind)]
		return excluded
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding catalog entries by kind",
			zap.Strings("excluded_kinds", f.kindList()),
			zap.Int("excluded", len(dropped)),
			zap.Int("entries_left", len(kept)),
		)
	}
	return kept, newStep(len(entries), len(kept)), nil
}

func (f *excludeKindsFilter) Status() Status {
	var details map[string]string
	if len(f.kinds) > 0 {
		details = map[string]string{"kinds": strings.Join(f.kindList(), ",")}
	}
	return f.status(f.Name(), details)
}

func (f *excludeKindsFilter) kindList() []string {
	out := make([]string, 0, len(f.kinds))
	for kind := range f.kinds {
		out = append(out, kind)
	}
	slices.Sort(out)
	return out
}

var kindSeparators = strings.NewReplacer("_", " ", "-", " ")

func normalizeKind(kind string) string {
	return strings.Join(strings.Fields(strings.ToLower(kindSeparators.Replace(kind))), " ")
}
