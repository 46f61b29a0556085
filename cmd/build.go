package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/index"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Encode the catalog and save the index",
	Run: func(cmd *cobra.Command, _ []string) {
		skip, _ := cmd.Flags().GetStringSlice("skip-filter")
		build(skip)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("catalog", "c", "", "catalog file (csv or xlsx)")
	buildCmd.Flags().StringP("index-file", "o", "", "where to write the index")
	buildCmd.Flags().StringP("provider", "p", "", "embedding provider: tfidf, gemini or onnx")
	buildCmd.Flags().StringSlice("skip-filter", nil, "catalog filters to skip: dedupe_url, exclude_kinds, exclude_file")

	viper.BindPFlag("catalog", buildCmd.Flags().Lookup("catalog"))
	viper.BindPFlag("index-file", buildCmd.Flags().Lookup("index-file"))
	viper.BindPFlag("embedding.provider", buildCmd.Flags().Lookup("provider"))
}

func build(skip []string) {
	ctx := context.Background()
	logger, config := setup()

	logger.Info("starting the index build", zap.String("version", version))

	entries, err := loadCatalog(ctx, config, skip, logger)
	if err != nil {
		logger.Fatal("loading the catalog", zap.Error(err))
	}

	encoder, err := newEncoder(ctx, config.Embedding, logger)
	if err != nil {
		logger.Fatal("creating the encoder", zap.Error(err),
			zap.String("hint", apiKeyHint))
	}
	defer encoder.Close()

	idx, err := index.Build(ctx, encoder.Encoder, entries, logger)
	if err != nil {
		logger.Fatal("building the index", zap.Error(err))
	}

	if err := index.Save(config.IndexFile, idx); err != nil {
		logger.Fatal("saving the index", zap.Error(err))
	}

	logger.Info("index saved",
		zap.String("path", config.IndexFile),
		zap.Int("entries", idx.Size()),
		zap.String("model", idx.Model()),
	)
}
