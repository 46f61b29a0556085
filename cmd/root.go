package cmd

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/filtering"
	"github.com/spigell/assessment-recommender/internal/logger"
)

const (
	app = "assessment-recommender"
)

type Config struct {
	Catalog       string               `mapstructure:"catalog"`
	CatalogSheet  string               `mapstructure:"catalog-sheet"`
	IndexFile     string               `mapstructure:"index-file"`
	TopK          int                  `mapstructure:"top-k"`
	Embedding     *EmbeddingConfig     `mapstructure:"embedding"`
	Reformulation *ReformulationConfig `mapstructure:"reformulation"`
	Filters       *filtering.Config    `mapstructure:"filters"`
	Evaluation    *EvaluationConfig    `mapstructure:"evaluation"`
}

type EmbeddingConfig struct {
	Provider  string                 `mapstructure:"provider"`
	BatchSize int                    `mapstructure:"batch-size"`
	Workers   int                    `mapstructure:"workers"`
	CacheFile string                 `mapstructure:"cache-file"`
	Timeout   time.Duration          `mapstructure:"timeout"`
	Gemini    *GeminiEmbeddingConfig `mapstructure:"gemini"`
	ONNX      *ONNXConfig            `mapstructure:"onnx"`
}

type GeminiEmbeddingConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	Dimension  int    `mapstructure:"dimension"`
	TaskType   string `mapstructure:"task-type"`
}

type ONNXConfig struct {
	LibraryPath   string `mapstructure:"library-path"`
	ModelPath     string `mapstructure:"model-path"`
	TokenizerPath string `mapstructure:"tokenizer-path"`
	MaxSeqLen     int    `mapstructure:"max-seq-len"`
	ModelID       string `mapstructure:"model-id"`
}

type ReformulationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type EvaluationConfig struct {
	Dataset        string `mapstructure:"dataset"`
	Sheet          string `mapstructure:"sheet"`
	QueryColumn    string `mapstructure:"query-column"`
	RelevantColumn string `mapstructure:"relevant-column"`
	K              int    `mapstructure:"k"`
	DebugSamples   int    `mapstructure:"debug-samples"`
	Workers        int    `mapstructure:"workers"`
	GroupByQuery   bool   `mapstructure:"group-by-query"`
	Format         string `mapstructure:"format"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "assessment-recommender ranks catalog assessments by semantic relevance to a hiring query",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is assessment-recommender.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func initConfig() {
	// GOOGLE_API_KEY and friends may live in a .env file next to the config.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults are enough to run without a config file, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// setup builds the logger and the config every command starts from.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{Provider: providerTFIDF}
	}
	if config.Reformulation == nil {
		config.Reformulation = &ReformulationConfig{}
	}
	if config.Filters == nil {
		config.Filters = &filtering.Config{Dedupe: true}
	}
	if config.Evaluation == nil {
		config.Evaluation = &EvaluationConfig{}
	}

	return logger, config
}
