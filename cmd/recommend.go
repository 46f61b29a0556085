package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/embedding"
	"github.com/spigell/assessment-recommender/internal/index"
	"github.com/spigell/assessment-recommender/internal/recommender"
)

var queryPrompt = promptui.Prompt{
	Label: "Hiring query",
	Validate: func(input string) error {
		if strings.TrimSpace(input) == "" {
			return recommender.ErrEmptyQuery
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend [query]",
	Short: "Recommend assessments for a hiring query",
	Long: "Recommend assessments for the query given as arguments. Without arguments the command " +
		"keeps prompting for queries and picks up an index rewritten by build between them.",
	Run: func(_ *cobra.Command, args []string) {
		recommend(args)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().IntP("top-k", "k", 0, "number of assessments to return")
	recommendCmd.Flags().Bool("reformulate", false, "rewrite the query with the generative model first")

	viper.BindPFlag("top-k", recommendCmd.Flags().Lookup("top-k"))
	viper.BindPFlag("reformulation.enabled", recommendCmd.Flags().Lookup("reformulate"))
}

func recommend(args []string) {
	ctx := context.Background()
	logger, config := setup()

	svc, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("loading the index", zap.Error(err),
			zap.String("hint", "run the build command first or check index-file"))
	}
	defer svc.Close()

	if query := strings.Join(args, " "); strings.TrimSpace(query) != "" {
		if err := answer(ctx, svc.Service, query, os.Stdout); err != nil {
			logger.Fatal("ranking the catalog", zap.Error(err))
		}
		return
	}

	reloader := newIndexReloader(config.IndexFile, svc.encoder.Encoder, svc.indexes, logger)
	for {
		query, err := queryPrompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return
		}
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		reloader.Refresh()
		if err := answer(ctx, svc.Service, query, os.Stdout); err != nil {
			logger.Error("ranking the catalog", zap.Error(err))
		}
	}
}

func answer(ctx context.Context, svc *recommender.Service, query string, w io.Writer) error {
	rec, err := svc.Recommend(ctx, query)
	if err != nil {
		return err
	}

	out := json.NewEncoder(w)
	out.SetIndent("", "  ")
	return out.Encode(rec)
}

// indexReloader loads the index file again once a build has rewritten it and
// swaps it into the holder. Queries in flight keep the index they started with.
type indexReloader struct {
	path    string
	encoder embedding.Encoder
	holder  *index.Holder
	modTime time.Time
	logger  *zap.Logger
}

func newIndexReloader(path string, encoder embedding.Encoder, holder *index.Holder, log *zap.Logger) *indexReloader {
	r := &indexReloader{path: path, encoder: encoder, holder: holder, logger: log}
	if info, err := os.Stat(path); err == nil {
		r.modTime = info.ModTime()
	}
	return r
}

// Refresh reports whether a newer index was swapped in. A file that fails to
// load leaves the current index in place.
func (r *indexReloader) Refresh() bool {
	info, err := os.Stat(r.path)
	if err != nil || !info.ModTime().After(r.modTime) {
		return false
	}

	x, err := index.Load(r.path, r.encoder, r.logger)
	if err != nil {
		r.logger.Warn("index file changed but could not be loaded, keeping the current index",
			zap.String("path", r.path), zap.Error(err))
		return false
	}
	r.modTime = info.ModTime()

	previous := r.holder.Replace(x)
	fields := []zap.Field{
		zap.String("path", r.path),
		zap.Int("entries", x.Size()),
		zap.Time("created_at", x.CreatedAt()),
	}
	if previous != nil {
		fields = append(fields, zap.Time("replaced_created_at", previous.CreatedAt()))
	}
	r.logger.Info("index reloaded", fields...)
	return true
}
