// Package cmd implements the moneyocr command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moneyocr/moneyocr/internal/config"
	"github.com/moneyocr/moneyocr/internal/pipeline"
	"github.com/moneyocr/moneyocr/internal/version"
)

var (
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "moneyocr",
	Short: "Recognize money amounts in images",
	Long: `moneyocr runs an OCR pipeline tuned for extracting money amounts
from photos and scans: text detection, recognition and deterministic
amount extraction, with single-image, batch and HTTP server modes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		setupLogging(cfg)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	v = config.NewViper()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default moneyocr.yaml)")
	rootCmd.PersistentFlags().String("models-dir", "", "directory containing ONNX models")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	_ = v.BindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// buildPipeline assembles the pipeline from the resolved configuration.
func buildPipeline() (*pipeline.Pipeline, error) {
	return pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		Build()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// No config or models needed to print a version string.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("moneyocr %s (commit %s, built %s)\n",
			version.Version, version.GitCommit, version.BuildDate)
	},
}
