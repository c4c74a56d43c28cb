package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moneyocr/moneyocr/internal/batch"
)

var (
	batchFormat          string
	batchContinueOnError bool
	batchOutput          string
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir-or-files...>",
	Short: "Recognize money amounts in many images",
	Long: `Process a directory of images, or an explicit list of image files.
Each image gets its own timeout window; failures are reported per file and
do not stop the run unless --continue-on-error=false.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolveInputs(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return errors.New("no image files found")
		}

		p, err := buildPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		format := batchFormat
		if format == "" {
			format = cfg.Batch.OutputFormat
		}
		processor, err := batch.NewProcessor(p, batch.Options{
			ContinueOnError: batchContinueOnError,
			Format:          format,
		})
		if err != nil {
			return err
		}

		results, runErr := processor.Run(cmd.Context(), paths)

		out := cmd.OutOrStdout()
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}
		if err := processor.Write(out, results); err != nil {
			return err
		}
		return runErr
	},
}

// resolveInputs expands a single directory argument into its image files;
// multiple arguments are taken as explicit file paths.
func resolveInputs(args []string) ([]string, error) {
	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return batch.CollectImages(args[0])
		}
	}
	return args, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "output format (text, json, csv); defaults to config")
	batchCmd.Flags().BoolVar(&batchContinueOnError, "continue-on-error", true, "keep going after per-file failures")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write results to file instead of stdout")
	rootCmd.AddCommand(batchCmd)
}
