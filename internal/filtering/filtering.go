// Package filtering prunes catalog entries before they reach the index.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
)

// Filter is one pruning step. Steps run in the order they are listed.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, entries []catalog.Entry) ([]catalog.Entry, Step, error)
}

// Deps carries what steps need at run time.
type Deps struct {
	Logger *zap.Logger
}

// Step counts entries around a single filter run.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

func newStep(before, after int) Step {
	return Step{Initial: before, Dropped: before - after, Left: after}
}

// Config selects what the default steps remove.
type Config struct {
	Dedupe       bool     `mapstructure:"dedupe"`
	ExcludeKinds []string `mapstructure:"exclude-kinds"`
	ExcludeFile  string   `mapstructure:"exclude-file"`
}

// Status reports a filter's state for operators.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// switchable implements the enable/disable half of Filter.
type switchable struct {
	disabled bool
	reason   string
}

func (s *switchable) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *switchable) IsEnabled() bool { return !s.disabled }

func (s *switchable) status(name string, details map[string]string) Status {
	return Status{Name: name, Enabled: !s.disabled, Reason: s.reason, Details: details}
}

// Default lists the catalog filters in run order.
func Default() []Filter {
	return []Filter{NewDedupeURL(), NewExcludeKinds(), NewExcludeFile()}
}

// DisableByName turns off the step called name and reports whether one was found.
func DisableByName(steps []Filter, name, reason string) bool {
	found := false
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
			found = true
		}
	}
	return found
}

// Run validates every enabled step before applying any of them, then applies
// them in order.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, entries []catalog.Entry) ([]catalog.Entry, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	active := make([]Filter, 0, len(steps))
	for _, step := range steps {
		if step.IsEnabled() {
			if err := step.Validate(cfg); err != nil {
				return nil, fmt.Errorf("validate %s: %w", step.Name(), err)
			}
		}
		// Validate may switch a step off based on config.
		if !step.IsEnabled() {
			deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}
		active = append(active, step)
	}

	for _, step := range active {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := step.Apply(ctx, deps, entries)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		entries = next
	}

	return entries, nil
}

// Describe returns the status of every step.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(interface{ Status() Status }); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: step.Name(), Enabled: step.IsEnabled()})
	}
	return statuses
}

// keep splits entries by drop and returns the survivors with the URLs dropped.
func keep(entries []catalog.Entry, drop func(catalog.Entry) bool) (kept []catalog.Entry, dropped []string) {
	kept = make([]catalog.Entry, 0, len(entries))
	for _, entry := range entries {
		if drop(entry) {
			dropped = append(dropped, entry.URL)
			continue
		}
		kept = append(kept, entry)
	}
	return kept, dropped
}
