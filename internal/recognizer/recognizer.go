// Package recognizer converts cropped text-line images into (text, confidence)
// spans. The underlying capability returns its results in several shapes
// depending on the model library version; this package reconciles them into
// one span type and degrades to zero spans on anything it cannot parse.
package recognizer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/moneyocr/moneyocr/internal/models"
)

// Config holds configuration for the text recognizer.
type Config struct {
	ModelPath        string // Path to ONNX recognition model
	DictPath         string // Path to character dictionary
	ImageHeight      int    // Expected input height (e.g., 32 or 48)
	MaxWidth         int    // Optional max width clamp (0 = no clamp)
	PadWidthMultiple int    // If >0, right-pad width to this multiple
	NumThreads       int    // Number of CPU threads (0 for default)
}

// DefaultConfig returns a default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:        models.GetRecognitionModelPath(""),
		DictPath:         models.GetDictionaryPath(""),
		ImageHeight:      48,
		MaxWidth:         0,
		PadWidthMultiple: 8,
		NumThreads:       0,
	}
}

// UpdateModelPath updates ModelPath and DictPath based on modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetRecognitionModelPath(modelsDir)
	c.DictPath = models.GetDictionaryPath(modelsDir)
}

// Span is one recognized text unit with its model-reported confidence in [0,1].
type Span struct {
	Text       string
	Confidence float64
}

// Engine is the underlying recognition capability. The payload it returns is
// deliberately untyped: model libraries disagree on the result shape, and the
// recognizer owns reconciling them.
type Engine interface {
	Predict(crops []image.Image) (any, error)
	Close() error
}

// Recognizer performs text recognition over a shared engine handle. Engine
// calls are serialized behind a per-handle lock; ONNX sessions are not
// assumed safe for concurrent Run.
type Recognizer struct {
	config Config
	engine Engine
	mu     sync.Mutex
}

// NewRecognizer creates a recognizer backed by the ONNX engine from config.
func NewRecognizer(config Config) (*Recognizer, error) {
	if config.ModelPath == "" {
		return nil, errors.New("recognizer model path is empty")
	}
	if config.DictPath == "" {
		return nil, errors.New("recognizer dictionary path is empty")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("recognition model not found: %s", config.ModelPath)
	}
	if _, err := os.Stat(config.DictPath); err != nil {
		return nil, fmt.Errorf("dictionary not found: %s", config.DictPath)
	}
	if config.ImageHeight <= 0 {
		return nil, errors.New("recognizer image height must be > 0")
	}

	slog.Debug("Initializing recognizer",
		"model_path", config.ModelPath,
		"dict_path", config.DictPath,
		"image_height", config.ImageHeight)

	engine, err := newONNXEngine(config)
	if err != nil {
		return nil, err
	}
	return &Recognizer{config: config, engine: engine}, nil
}

// NewRecognizerWithEngine creates a recognizer over a caller-supplied engine.
func NewRecognizerWithEngine(config Config, engine Engine) (*Recognizer, error) {
	if engine == nil {
		return nil, errors.New("engine is nil")
	}
	return &Recognizer{config: config, engine: engine}, nil
}

// Close releases the engine.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		if err := r.engine.Close(); err != nil {
			return err
		}
		r.engine = nil
	}
	return nil
}

// GetConfig returns a copy of the recognizer's configuration.
func (r *Recognizer) GetConfig() Config { return r.config }

// Recognize runs the engine over the given images (region crops, or a single
// whole image in the no-detection fallback) and returns one span per
// recognized unit in input order. A payload in an unrecognized shape is
// logged and treated as empty; it never fails the call.
func (r *Recognizer) Recognize(images []image.Image) ([]Span, error) {
	if len(images) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	engine := r.engine
	if engine == nil {
		r.mu.Unlock()
		return nil, errors.New("recognizer is closed")
	}
	payload, err := engine.Predict(images)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("recognition inference failed: %w", err)
	}

	spans, ok := decodeSpans(payload)
	if !ok {
		slog.Warn("Recognizer returned result in unrecognized shape; treating as empty",
			"payload_type", fmt.Sprintf("%T", payload))
		return nil, nil
	}
	return spans, nil
}

// GetModelInfo returns information about the loaded recognition model.
func (r *Recognizer) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model_path":         r.config.ModelPath,
		"dict_path":          r.config.DictPath,
		"image_height":       r.config.ImageHeight,
		"max_width":          r.config.MaxWidth,
		"pad_width_multiple": r.config.PadWidthMultiple,
		"num_threads":        r.config.NumThreads,
	}
}
