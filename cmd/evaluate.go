package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/evaluation"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure recall@k against a labeled dataset",
	Run: func(_ *cobra.Command, _ []string) {
		evaluate()
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("dataset", "", "labeled dataset (csv or xlsx)")
	evaluateCmd.Flags().String("sheet", "", "worksheet name for xlsx datasets")
	evaluateCmd.Flags().IntP("k", "k", 0, "cut-off for recall@k")
	evaluateCmd.Flags().StringP("format", "f", "", "report format: text, json or yaml")
	evaluateCmd.Flags().Int("workers", 0, "parallel predictions")
	evaluateCmd.Flags().Bool("group-by-query", false, "merge rows that repeat a query")

	viper.BindPFlag("evaluation.dataset", evaluateCmd.Flags().Lookup("dataset"))
	viper.BindPFlag("evaluation.sheet", evaluateCmd.Flags().Lookup("sheet"))
	viper.BindPFlag("evaluation.k", evaluateCmd.Flags().Lookup("k"))
	viper.BindPFlag("evaluation.format", evaluateCmd.Flags().Lookup("format"))
	viper.BindPFlag("evaluation.workers", evaluateCmd.Flags().Lookup("workers"))
	viper.BindPFlag("evaluation.group-by-query", evaluateCmd.Flags().Lookup("group-by-query"))
}

func evaluate() {
	ctx := context.Background()
	logger, config := setup()
	ecfg := config.Evaluation

	if ecfg.Dataset == "" {
		logger.Fatal("dataset is required", zap.String("hint", "pass --dataset or set evaluation.dataset"))
	}

	rows, err := evaluation.ReadDataset(ecfg.Dataset, evaluation.DatasetOptions{
		Sheet:          ecfg.Sheet,
		QueryColumn:    ecfg.QueryColumn,
		RelevantColumn: ecfg.RelevantColumn,
		GroupByQuery:   ecfg.GroupByQuery,
	})
	if err != nil {
		logger.Fatal("reading the dataset", zap.Error(err))
	}
	logger.Info("dataset loaded", zap.String("path", ecfg.Dataset), zap.Int("rows", len(rows)))

	svc, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("loading the index", zap.Error(err),
			zap.String("hint", "run the build command first or check index-file"))
	}
	defer svc.Close()

	harness := evaluation.NewHarness(evaluation.RecommenderPredictor(svc.Service), evaluation.Config{
		K:            ecfg.K,
		DebugSamples: ecfg.DebugSamples,
		Workers:      ecfg.Workers,
	}, logger)

	report, err := harness.Run(ctx, rows)
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}

	if err := evaluation.Write(os.Stdout, report, ecfg.Format); err != nil {
		logger.Fatal("writing the report", zap.Error(err))
	}
}
