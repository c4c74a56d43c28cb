package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/moneyocr/moneyocr/internal/amount"
	"github.com/moneyocr/moneyocr/internal/recognizer"
	"github.com/moneyocr/moneyocr/internal/utils"
)

// Warning strings surfaced to callers.
const (
	WarnNoTextDetected = "no text detected"
	WarnLowConfidence  = "confidence low, recommend manual review"
)

// RecognitionOutcome is the result of one Recognize call.
type RecognitionOutcome struct {
	Amount            *string  `json:"amount"`
	AverageConfidence float64  `json:"confidence"`
	ElapsedMillis     int64    `json:"processing_time_ms"`
	RawText           *string  `json:"raw_text,omitempty"`
	Warnings          []string `json:"warnings"`
}

// Recognize runs the full pipeline over raw image bytes. The stage chain runs
// on its own goroutine and is joined against the configured budget; on expiry
// the call returns a TimeoutError while the abandoned worker finishes its
// in-flight native call in the background.
func (p *Pipeline) Recognize(ctx context.Context, data []byte) (*RecognitionOutcome, error) {
	if p == nil || p.detector == nil || p.recognizer == nil {
		return nil, errors.New("pipeline is not initialized")
	}

	start := time.Now()
	budget := p.config.Timeout
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type reply struct {
		outcome *RecognitionOutcome
		err     error
	}
	done := make(chan reply, 1)
	go func() {
		outcome, err := p.process(ctx, data, start)
		done <- reply{outcome, err}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			elapsed := time.Since(start)
			slog.Warn("Recognition timed out", "budget", budget, "elapsed", elapsed)
			return nil, &TimeoutError{Budget: budget, Elapsed: elapsed}
		}
		return nil, ctx.Err()
	}
}

// process runs the stage chain: normalize, detect, crop, recognize, aggregate.
// Stage boundaries check ctx so an expired budget stops the chain early.
func (p *Pipeline) process(ctx context.Context, data []byte, start time.Time) (*RecognitionOutcome, error) {
	img, err := utils.NormalizeImage(data, p.config.MaxImageDimension)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regions, err := p.detector.DetectRegions(img)
	if err != nil {
		return nil, &EngineError{Stage: "detection", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	crops := make([]image.Image, 0, len(regions))
	for _, region := range regions {
		crop, ok := utils.CropRegion(img, region.Polygon)
		if !ok {
			slog.Debug("Skipping degenerate region crop", "polygon", region.Polygon)
			continue
		}
		crops = append(crops, crop)
	}

	// No usable regions: recognize the whole image rather than giving up.
	// Single prominent text on an otherwise plain background is a common
	// case the detector misses.
	inputs := crops
	if len(inputs) == 0 {
		inputs = []image.Image{img}
	}

	spans, err := p.recognizer.Recognize(inputs)
	if err != nil {
		return nil, &EngineError{Stage: "recognition", Err: err}
	}

	return p.aggregate(spans, start), nil
}

// aggregate folds spans into the final outcome. It always runs, even over
// zero spans, so downstream consumers get a uniform result shape.
func (p *Pipeline) aggregate(spans []recognizer.Span, start time.Time) *RecognitionOutcome {
	outcome := &RecognitionOutcome{Warnings: []string{}}

	if len(spans) == 0 {
		outcome.Warnings = append(outcome.Warnings, WarnNoTextDetected)
		outcome.ElapsedMillis = time.Since(start).Milliseconds()
		return outcome
	}

	texts := make([]string, len(spans))
	var sum float64
	for i, span := range spans {
		texts[i] = span.Text
		sum += span.Confidence
	}
	raw := strings.Join(texts, " ")
	outcome.RawText = &raw
	outcome.AverageConfidence = sum / float64(len(spans))

	if value, ok := amount.Extract(raw); ok {
		outcome.Amount = &value
	}
	if outcome.AverageConfidence < p.config.LowConfidenceThreshold {
		outcome.Warnings = append(outcome.Warnings, WarnLowConfidence)
	}

	outcome.ElapsedMillis = time.Since(start).Milliseconds()
	return outcome
}

// HealthCheck runs detection and recognition over a trivial blank image and
// reports whether both complete without error. A blank image legitimately
// yields zero text; only engine failures count as unhealthy.
func (p *Pipeline) HealthCheck() bool {
	if p == nil || p.detector == nil || p.recognizer == nil {
		return false
	}

	img := imaging.New(100, 100, color.White)
	regions, err := p.detector.DetectRegions(img)
	if err != nil {
		slog.Error("Health check detection failed", "error", err)
		return false
	}

	inputs := make([]image.Image, 0, len(regions))
	for _, region := range regions {
		if crop, ok := utils.CropRegion(img, region.Polygon); ok {
			inputs = append(inputs, crop)
		}
	}
	if len(inputs) == 0 {
		inputs = []image.Image{img}
	}
	if _, err := p.recognizer.Recognize(inputs); err != nil {
		slog.Error("Health check recognition failed", "error", err)
		return false
	}
	return true
}
