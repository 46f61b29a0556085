package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/evaluation"
)

type dedupeURLFilter struct {
	switchable
}

// NewDedupeURL keeps the first entry for every normalized URL. Entries
// without a URL are deduplicated by name.
func NewDedupeURL() Filter {
	return &dedupeURLFilter{}
}

func (f *dedupeURLFilter) Name() string { return "dedupe_url" }

func (f *dedupeURLFilter) Validate(cfg *Config) error {
	if cfg != nil && !cfg.Dedupe {
		f.Disable("disabled in config")
	}
	return nil
}

func (f *dedupeURLFilter) Apply(_ context.Context, deps Deps, entries []catalog.Entry) ([]catalog.Entry, Step, error) {
	seen := make(map[string]struct{}, len(entries))
	kept, dropped := keep(entries, func(e catalog.Entry) bool {
		key := evaluation.NormalizeIdentifier(e.URL)
		if key == "" {
			key = "name:" + e.Name
		}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		return false
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding duplicate catalog entries",
			zap.Strings("excluded_urls", dropped),
			zap.Int("entries_left", len(kept)),
		)
	}
	return kept, newStep(len(entries), len(kept)), nil
}

func (f *dedupeURLFilter) Status() Status {
	return f.status(f.Name(), nil)
}
