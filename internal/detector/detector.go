// Package detector locates text regions in an image. The heavy lifting is
// delegated to an Engine (by default an ONNX DB-style detection model); this
// package's job is invoking it and tolerating absent or malformed output.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/moneyocr/moneyocr/internal/models"
	"github.com/moneyocr/moneyocr/internal/utils"
)

// Config holds configuration for the text detector.
type Config struct {
	ModelPath   string  // Path to ONNX detection model
	ProbThresh  float32 // Probability map binarization threshold
	BoxThresh   float32 // Minimum mean score for a region to be kept
	MaxSideLen  int     // Longest side fed to the model (multiple of 32)
	MinRegionPx int     // Regions smaller than this (either side) are dropped
	NumThreads  int     // Number of CPU threads (0 for default)
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:   models.GetDetectionModelPath(""),
		ProbThresh:  0.3,
		BoxThresh:   0.6,
		MaxSideLen:  960,
		MinRegionPx: 3,
		NumThreads:  0,
	}
}

// UpdateModelPath updates the ModelPath based on modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetDetectionModelPath(modelsDir)
}

// Region is a detected text quadrilateral in source-image coordinates.
type Region struct {
	Polygon    []utils.Point // four corner points
	Confidence float64
}

// Result is the raw engine output: a set of bounding polygons, possibly empty.
type Result struct {
	Polys       [][]utils.Point
	Confidences []float64
}

// Engine is the underlying detection capability. Implementations must treat
// Predict as read-only with respect to the input image.
type Engine interface {
	Predict(img image.Image) (Result, error)
	Close() error
}

// Detector performs text detection over a shared engine handle. Engine calls
// are serialized behind a per-handle lock; ONNX sessions are not assumed safe
// for concurrent Run.
type Detector struct {
	config Config
	engine Engine
	mu     sync.Mutex
}

// NewDetector creates a detector backed by the ONNX engine from config.
func NewDetector(config Config) (*Detector, error) {
	if config.ModelPath == "" {
		return nil, errors.New("detector model path is empty")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("detection model not found: %s", config.ModelPath)
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"prob_thresh", config.ProbThresh,
		"box_thresh", config.BoxThresh)

	engine, err := newONNXEngine(config)
	if err != nil {
		return nil, err
	}
	return &Detector{config: config, engine: engine}, nil
}

// NewDetectorWithEngine creates a detector over a caller-supplied engine.
func NewDetectorWithEngine(config Config, engine Engine) (*Detector, error) {
	if engine == nil {
		return nil, errors.New("engine is nil")
	}
	return &Detector{config: config, engine: engine}, nil
}

// Close releases the engine.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine != nil {
		if err := d.engine.Close(); err != nil {
			return err
		}
		d.engine = nil
	}
	return nil
}

// GetConfig returns a copy of the detector's configuration.
func (d *Detector) GetConfig() Config { return d.config }

// DetectRegions invokes the engine once and returns detected quadrilaterals.
// Empty or malformed engine output yields zero regions, not an error; a blank
// image legitimately has no text. Only engine invocation failures propagate.
func (d *Detector) DetectRegions(img image.Image) ([]Region, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}

	d.mu.Lock()
	engine := d.engine
	if engine == nil {
		d.mu.Unlock()
		return nil, errors.New("detector is closed")
	}
	res, err := engine.Predict(img)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("detection inference failed: %w", err)
	}

	regions := make([]Region, 0, len(res.Polys))
	for i, poly := range res.Polys {
		if !wellFormedQuad(poly) {
			slog.Debug("Skipping malformed detection polygon", "index", i, "points", len(poly))
			continue
		}
		conf := 1.0
		if i < len(res.Confidences) {
			conf = res.Confidences[i]
		}
		regions = append(regions, Region{Polygon: poly, Confidence: conf})
	}
	return regions, nil
}

// wellFormedQuad checks for exactly four finite points.
func wellFormedQuad(poly []utils.Point) bool {
	if len(poly) != 4 {
		return false
	}
	for _, p := range poly {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// GetModelInfo returns information about the loaded detection model.
func (d *Detector) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model_path":   d.config.ModelPath,
		"prob_thresh":  d.config.ProbThresh,
		"box_thresh":   d.config.BoxThresh,
		"max_side_len": d.config.MaxSideLen,
		"num_threads":  d.config.NumThreads,
	}
}
