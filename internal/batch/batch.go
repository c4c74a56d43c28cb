// Package batch runs the recognition pipeline over many image files,
// isolating per-file failures so one bad input never aborts the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moneyocr/moneyocr/internal/pipeline"
)

// Recognizer is the pipeline capability batch processing needs.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (*pipeline.RecognitionOutcome, error)
}

// Options controls a batch run.
type Options struct {
	ContinueOnError bool
	Format          string // "text", "json" or "csv"
}

// Result is the outcome for one input file. Exactly one of Outcome and Err
// is set.
type Result struct {
	File    string
	Outcome *pipeline.RecognitionOutcome
	Err     error
}

// Processor drives the pipeline over a list of files.
type Processor struct {
	recognizer Recognizer
	opts       Options
}

// NewProcessor creates a batch processor.
func NewProcessor(recognizer Recognizer, opts Options) (*Processor, error) {
	if recognizer == nil {
		return nil, errors.New("recognizer is nil")
	}
	switch opts.Format {
	case "", "text", "json", "csv":
	default:
		return nil, fmt.Errorf("unknown output format: %q", opts.Format)
	}
	return &Processor{recognizer: recognizer, opts: opts}, nil
}

// imageExtensions the collector accepts, lower-case.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// CollectImages lists the image files directly under dir, sorted by name.
func CollectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes each file in order. Every file gets a fresh timeout window
// inside the pipeline. With ContinueOnError false the first failure stops the
// run; the partial results are still returned.
func (p *Processor) Run(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := p.processOne(ctx, path)
		results = append(results, result)
		if result.Err != nil {
			slog.Warn("Batch item failed", "file", path, "error", result.Err)
			if !p.opts.ContinueOnError {
				return results, fmt.Errorf("aborted at %s: %w", path, result.Err)
			}
		}
	}
	return results, nil
}

func (p *Processor) processOne(ctx context.Context, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{File: path, Err: fmt.Errorf("failed to read file: %w", err)}
	}
	outcome, err := p.recognizer.Recognize(ctx, data)
	if err != nil {
		return Result{File: path, Err: err}
	}
	return Result{File: path, Outcome: outcome}
}

// Summary aggregates a finished run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}
