package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/evaluation"
	"github.com/spigell/assessment-recommender/internal/table"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Write top-k predictions for every query of a test set",
	Run: func(cmd *cobra.Command, _ []string) {
		predict(cmd)
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().String("dataset", "", "test queries (csv or xlsx)")
	predictCmd.Flags().String("sheet", "", "worksheet name for xlsx datasets")
	predictCmd.Flags().StringP("output", "o", "predictions.csv", "where to write the predictions")
	predictCmd.Flags().IntP("k", "k", 0, "predictions per query")
}

func predict(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := setup()
	ecfg := config.Evaluation

	dataset := stringFlag(cmd, "dataset", ecfg.Dataset)
	sheet := stringFlag(cmd, "sheet", ecfg.Sheet)
	output := stringFlag(cmd, "output", "predictions.csv")
	k := ecfg.K
	if n, err := cmd.Flags().GetInt("k"); err == nil && n > 0 {
		k = n
	}

	if dataset == "" {
		logger.Fatal("dataset is required", zap.String("hint", "pass --dataset or set evaluation.dataset"))
	}

	queries, err := readQueries(dataset, sheet, ecfg.QueryColumn)
	if err != nil {
		logger.Fatal("reading test queries", zap.Error(err))
	}

	svc, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("loading the index", zap.Error(err),
			zap.String("hint", "run the build command first or check index-file"))
	}
	defer svc.Close()

	predictor := evaluation.RecommenderPredictor(svc.Service)
	mapper := iter.Mapper[string, []string]{MaxGoroutines: max(ecfg.Workers, 1)}
	predictions, err := mapper.MapErr(queries, func(query *string) ([]string, error) {
		return predictor.Predict(ctx, *query, k)
	})
	if err != nil {
		logger.Fatal("predicting", zap.Error(err))
	}

	written, err := writePredictions(output, queries, predictions)
	if err != nil {
		logger.Fatal("writing predictions", zap.Error(err))
	}

	logger.Info("predictions saved", zap.String("path", output), zap.Int("rows", written))
}

func readQueries(path, sheet, column string) ([]string, error) {
	records, err := table.Read(path, sheet)
	if err != nil {
		return nil, err
	}
	if column == "" {
		column = evaluation.DefaultQueryColumn
	}

	queries := make([]string, 0, len(records))
	for i, record := range records {
		query, ok := evaluation.Column(record, column)
		if !ok {
			return nil, fmt.Errorf("row %d: column %q not found", i+1, column)
		}
		if query = strings.TrimSpace(query); query != "" {
			queries = append(queries, query)
		}
	}
	return queries, nil
}

func writePredictions(path string, queries []string, predictions [][]string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{evaluation.DefaultQueryColumn, evaluation.DefaultRelevantColumn}); err != nil {
		return 0, err
	}

	rows := 0
	for i, query := range queries {
		for _, url := range predictions[i] {
			if err := w.Write([]string{query, url}); err != nil {
				return rows, err
			}
			rows++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, err
	}
	return rows, file.Close()
}

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if value, err := cmd.Flags().GetString(name); err == nil && cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}
