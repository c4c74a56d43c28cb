package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moneyocr/moneyocr/internal/pipeline"
)

var imageFormat string

var imageCmd = &cobra.Command{
	Use:   "image <path>",
	Short: "Recognize the money amount in a single image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		p, err := buildPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		outcome, err := p.Recognize(cmd.Context(), data)
		if err != nil {
			return err
		}
		return printOutcome(cmd, outcome, imageFormat)
	},
}

func printOutcome(cmd *cobra.Command, outcome *pipeline.RecognitionOutcome, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	amount := "(none)"
	if outcome.Amount != nil {
		amount = *outcome.Amount
	}
	cmd.Printf("Amount:     %s\n", amount)
	cmd.Printf("Confidence: %.2f\n", outcome.AverageConfidence)
	cmd.Printf("Elapsed:    %dms\n", outcome.ElapsedMillis)
	if outcome.RawText != nil {
		cmd.Printf("Raw text:   %s\n", *outcome.RawText)
	}
	for _, warning := range outcome.Warnings {
		cmd.Printf("Warning:    %s\n", warning)
	}
	return nil
}

func init() {
	imageCmd.Flags().StringVar(&imageFormat, "format", "text", "output format (text, json)")
	rootCmd.AddCommand(imageCmd)
}
