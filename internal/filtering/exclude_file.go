package filtering

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/evaluation"
)

type excludeFileFilter struct {
	switchable
	path string
}

// excludedEntries is the exclude file layout. JSON documents are valid YAML
// and decode the same way.
type excludedEntries struct {
	URLs []string `yaml:"urls"`
}

// NewExcludeFile creates a filter that removes entries whose URLs are listed in an exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, entries []catalog.Entry) ([]catalog.Entry, Step, error) {
	if f.path == "" {
		return entries, newStep(len(entries), len(entries)), nil
	}

	urls, err := readExcludeFile(f.path)
	if err != nil {
		return entries, Step{}, fmt.Errorf("getting excluded entries from file: %w", err)
	}

	excluded := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		if key := evaluation.NormalizeIdentifier(url); key != "" {
			excluded[key] = struct{}{}
		}
	}

	kept, dropped := keep(entries, func(e catalog.Entry) bool {
		_, ok := excluded[evaluation.NormalizeIdentifier(e.URL)]
		return ok
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding catalog entries based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_urls", dropped),
			zap.Int("entries_left", len(kept)),
		)
	}
	return kept, newStep(len(entries), len(kept)), nil
}

func (f *excludeFileFilter) Status() Status {
	var details map[string]string
	if f.path != "" {
		details = map[string]string{"path": f.path}
	}
	return f.status(f.Name(), details)
}

func readExcludeFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var doc excludedEntries
	if err := yaml.NewDecoder(file).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return doc.URLs, nil
}
