// Package pipeline orchestrates the recognition flow: normalize the input
// image, detect text regions, crop them, recognize text, aggregate confidence
// and extract a money amount, all inside a wall-clock budget.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moneyocr/moneyocr/internal/detector"
	"github.com/moneyocr/moneyocr/internal/recognizer"
	"github.com/moneyocr/moneyocr/internal/utils"
)

// Default budgets and thresholds.
const (
	DefaultTimeout                = 3 * time.Second
	DefaultMaxImageDimension      = utils.DefaultMaxDimension
	DefaultLowConfidenceThreshold = 0.8
)

// Config holds configuration for the whole pipeline.
type Config struct {
	ModelsDir              string
	Timeout                time.Duration
	MaxImageDimension      int
	LowConfidenceThreshold float64
	Detector               detector.Config
	Recognizer             recognizer.Config
}

// DefaultConfig returns a default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:                DefaultTimeout,
		MaxImageDimension:      DefaultMaxImageDimension,
		LowConfidenceThreshold: DefaultLowConfidenceThreshold,
		Detector:               detector.DefaultConfig(),
		Recognizer:             recognizer.DefaultConfig(),
	}
}

// Pipeline ties a detector and a recognizer together. Both hold shared model
// handles; the pipeline itself adds no locking beyond theirs, so concurrent
// Recognize calls are safe and serialize at the engine level.
type Pipeline struct {
	config     Config
	detector   *detector.Detector
	recognizer *recognizer.Recognizer
}

// Builder assembles a Pipeline step by step. Zero or more With* calls refine
// the default configuration before Build allocates the model sessions.
type Builder struct {
	config     Config
	detector   *detector.Detector
	recognizer *recognizer.Recognizer
}

// NewBuilder creates a pipeline builder with default configuration.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithModelsDir points all model paths at dir.
func (b *Builder) WithModelsDir(dir string) *Builder {
	b.config.ModelsDir = dir
	b.config.Detector.UpdateModelPath(dir)
	b.config.Recognizer.UpdateModelPath(dir)
	return b
}

// WithTimeout sets the wall-clock budget for a single Recognize call.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.config.Timeout = d
	return b
}

// WithMaxImageDimension bounds the longer side of normalized input images.
func (b *Builder) WithMaxImageDimension(px int) *Builder {
	b.config.MaxImageDimension = px
	return b
}

// WithLowConfidenceThreshold sets the manual-review warning threshold.
func (b *Builder) WithLowConfidenceThreshold(v float64) *Builder {
	b.config.LowConfidenceThreshold = v
	return b
}

// WithThreads sets the CPU thread count for both engines.
func (b *Builder) WithThreads(n int) *Builder {
	b.config.Detector.NumThreads = n
	b.config.Recognizer.NumThreads = n
	return b
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(config Config) *Builder {
	b.config = config
	return b
}

// WithDetector injects a pre-built detector, skipping model loading for it.
func (b *Builder) WithDetector(d *detector.Detector) *Builder {
	b.detector = d
	return b
}

// WithRecognizer injects a pre-built recognizer, skipping model loading for it.
func (b *Builder) WithRecognizer(r *recognizer.Recognizer) *Builder {
	b.recognizer = r
	return b
}

// Build validates the configuration and allocates any engine not injected.
// On partial failure the already-created engine is released.
func (b *Builder) Build() (*Pipeline, error) {
	if b.config.Timeout <= 0 {
		return nil, errors.New("pipeline timeout must be > 0")
	}
	if b.config.MaxImageDimension <= 0 {
		return nil, errors.New("max image dimension must be > 0")
	}
	if b.config.LowConfidenceThreshold < 0 || b.config.LowConfidenceThreshold > 1 {
		return nil, errors.New("low confidence threshold must be in [0, 1]")
	}

	det := b.detector
	if det == nil {
		var err error
		det, err = detector.NewDetector(b.config.Detector)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize detector: %w", err)
		}
	}

	rec := b.recognizer
	if rec == nil {
		var err error
		rec, err = recognizer.NewRecognizer(b.config.Recognizer)
		if err != nil {
			if b.detector == nil {
				if cerr := det.Close(); cerr != nil {
					slog.Error("Failed to close detector during build rollback", "error", cerr)
				}
			}
			return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
		}
	}

	slog.Info("Pipeline ready",
		"timeout", b.config.Timeout,
		"max_image_dimension", b.config.MaxImageDimension,
		"low_confidence_threshold", b.config.LowConfidenceThreshold)

	return &Pipeline{config: b.config, detector: det, recognizer: rec}, nil
}

// GetConfig returns a copy of the pipeline's configuration.
func (p *Pipeline) GetConfig() Config { return p.config }

// Close releases both engines. Safe to call more than once.
func (p *Pipeline) Close() error {
	var errs []error
	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detector close: %w", err))
		}
	}
	if p.recognizer != nil {
		if err := p.recognizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("recognizer close: %w", err))
		}
	}
	return errors.Join(errs...)
}
