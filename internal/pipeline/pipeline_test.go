package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneyocr/moneyocr/internal/detector"
	"github.com/moneyocr/moneyocr/internal/recognizer"
	"github.com/moneyocr/moneyocr/internal/testutil"
	"github.com/moneyocr/moneyocr/internal/utils"
)

type stubDetEngine struct {
	result detector.Result
	err    error
	delay  time.Duration
}

func (s *stubDetEngine) Predict(img image.Image) (detector.Result, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.result, s.err
}

func (s *stubDetEngine) Close() error { return nil }

type stubRecEngine struct {
	payload any
	err     error

	mu      sync.Mutex
	batches [][]image.Image
}

func (s *stubRecEngine) Predict(crops []image.Image) (any, error) {
	s.mu.Lock()
	s.batches = append(s.batches, crops)
	s.mu.Unlock()
	return s.payload, s.err
}

func (s *stubRecEngine) Close() error { return nil }

func (s *stubRecEngine) lastBatch() []image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

func newStubPipeline(t *testing.T, det *stubDetEngine, rec *stubRecEngine, tweak func(*Builder)) *Pipeline {
	t.Helper()
	d, err := detector.NewDetectorWithEngine(detector.DefaultConfig(), det)
	require.NoError(t, err)
	r, err := recognizer.NewRecognizerWithEngine(recognizer.DefaultConfig(), rec)
	require.NoError(t, err)

	builder := NewBuilder().WithDetector(d).WithRecognizer(r)
	if tweak != nil {
		tweak(builder)
	}
	p, err := builder.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.GenerateTextImage("¥888.88", w, h))
}

func quad(x0, y0, x1, y1 float64) []utils.Point {
	return []utils.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestRecognize_EndToEnd(t *testing.T) {
	det := &stubDetEngine{result: detector.Result{
		Polys:       [][]utils.Point{quad(10, 10, 90, 30)},
		Confidences: []float64{0.9},
	}}
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{"¥888.88"},
		"scores": []float64{0.95},
	}}
	p := newStubPipeline(t, det, rec, nil)

	outcome, err := p.Recognize(context.Background(), pngBytes(t, 100, 40))
	require.NoError(t, err)
	require.NotNil(t, outcome.Amount)
	assert.Equal(t, "888.88", *outcome.Amount)
	require.NotNil(t, outcome.RawText)
	assert.Equal(t, "¥888.88", *outcome.RawText)
	assert.InDelta(t, 0.95, outcome.AverageConfidence, 1e-9)
	assert.Empty(t, outcome.Warnings)
	assert.GreaterOrEqual(t, outcome.ElapsedMillis, int64(0))
}

func TestRecognize_Idempotent(t *testing.T) {
	det := &stubDetEngine{result: detector.Result{
		Polys:       [][]utils.Point{quad(5, 5, 80, 25)},
		Confidences: []float64{0.9},
	}}
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{"¥12.34"},
		"scores": []float64{0.91},
	}}
	p := newStubPipeline(t, det, rec, nil)

	data := pngBytes(t, 100, 40)
	first, err := p.Recognize(context.Background(), data)
	require.NoError(t, err)
	second, err := p.Recognize(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, first.Amount, second.Amount)
	assert.Equal(t, first.RawText, second.RawText)
	assert.Equal(t, first.AverageConfidence, second.AverageConfidence)
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestRecognize_NoTextDetected(t *testing.T) {
	det := &stubDetEngine{} // zero regions
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{},
		"scores": []float64{},
	}}
	p := newStubPipeline(t, det, rec, nil)

	outcome, err := p.Recognize(context.Background(), pngBytes(t, 50, 50))
	require.NoError(t, err)
	assert.Nil(t, outcome.Amount)
	assert.Nil(t, outcome.RawText)
	assert.Zero(t, outcome.AverageConfidence)
	assert.Equal(t, []string{WarnNoTextDetected}, outcome.Warnings)
}

func TestRecognize_WholeImageFallback(t *testing.T) {
	det := &stubDetEngine{} // zero regions, recognizer sees the whole image
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{"$42.00"},
		"scores": []float64{0.9},
	}}
	p := newStubPipeline(t, det, rec, nil)

	outcome, err := p.Recognize(context.Background(), pngBytes(t, 64, 48))
	require.NoError(t, err)
	require.NotNil(t, outcome.Amount)
	assert.Equal(t, "42.00", *outcome.Amount)

	batch := rec.lastBatch()
	require.Len(t, batch, 1)
	assert.Equal(t, 64, batch[0].Bounds().Dx())
	assert.Equal(t, 48, batch[0].Bounds().Dy())
}

func TestRecognize_DegenerateRegionsSkipped(t *testing.T) {
	det := &stubDetEngine{result: detector.Result{
		Polys: [][]utils.Point{
			quad(10, 10, 10, 10), // zero area, skipped
			quad(5, 5, 40, 20),
		},
		Confidences: []float64{0.9, 0.9},
	}}
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{"¥1"},
		"scores": []float64{0.9},
	}}
	p := newStubPipeline(t, det, rec, nil)

	_, err := p.Recognize(context.Background(), pngBytes(t, 60, 30))
	require.NoError(t, err)
	assert.Len(t, rec.lastBatch(), 1)
}

func TestRecognize_LowConfidenceWarning(t *testing.T) {
	det := &stubDetEngine{result: detector.Result{
		Polys:       [][]utils.Point{quad(5, 5, 50, 20)},
		Confidences: []float64{0.9},
	}}
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{"¥5.00"},
		"scores": []float64{0.5},
	}}
	p := newStubPipeline(t, det, rec, nil)

	outcome, err := p.Recognize(context.Background(), pngBytes(t, 60, 30))
	require.NoError(t, err)
	require.NotNil(t, outcome.Amount)
	assert.Equal(t, "5.00", *outcome.Amount)
	assert.Contains(t, outcome.Warnings, WarnLowConfidence)
}

func TestRecognize_AverageConfidence(t *testing.T) {
	det := &stubDetEngine{result: detector.Result{
		Polys:       [][]utils.Point{quad(5, 5, 30, 15), quad(5, 20, 30, 28)},
		Confidences: []float64{0.9, 0.9},
	}}
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{"¥10", "extra"},
		"scores": []float64{1.0, 0.6},
	}}
	p := newStubPipeline(t, det, rec, nil)

	outcome, err := p.Recognize(context.Background(), pngBytes(t, 60, 40))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, outcome.AverageConfidence, 1e-9)
	require.NotNil(t, outcome.RawText)
	assert.Equal(t, "¥10 extra", *outcome.RawText)
}

func TestRecognize_UndecodableInput(t *testing.T) {
	p := newStubPipeline(t, &stubDetEngine{}, &stubRecEngine{}, nil)

	_, err := p.Recognize(context.Background(), []byte("not an image"))
	require.Error(t, err)
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestRecognize_DetectionFailure(t *testing.T) {
	det := &stubDetEngine{err: errors.New("session corrupt")}
	p := newStubPipeline(t, det, &stubRecEngine{}, nil)

	_, err := p.Recognize(context.Background(), pngBytes(t, 40, 40))
	require.Error(t, err)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "detection", engineErr.Stage)
}

func TestRecognize_RecognitionFailure(t *testing.T) {
	det := &stubDetEngine{result: detector.Result{
		Polys:       [][]utils.Point{quad(5, 5, 30, 15)},
		Confidences: []float64{0.9},
	}}
	rec := &stubRecEngine{err: errors.New("model unavailable")}
	p := newStubPipeline(t, det, rec, nil)

	_, err := p.Recognize(context.Background(), pngBytes(t, 40, 40))
	require.Error(t, err)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "recognition", engineErr.Stage)
}

func TestRecognize_TimeoutBoundedReturn(t *testing.T) {
	det := &stubDetEngine{delay: 500 * time.Millisecond}
	p := newStubPipeline(t, det, &stubRecEngine{}, func(b *Builder) {
		b.WithTimeout(50 * time.Millisecond)
	})

	start := time.Now()
	_, err := p.Recognize(context.Background(), pngBytes(t, 40, 40))
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Budget)
	assert.Less(t, elapsed, 400*time.Millisecond, "caller must not wait out the stalled stage")
}

func TestRecognize_CanceledContext(t *testing.T) {
	p := newStubPipeline(t, &stubDetEngine{}, &stubRecEngine{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Recognize(ctx, pngBytes(t, 40, 40))
	require.Error(t, err)
	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr), "cancellation is not a timeout")
}

func TestBuilder_RejectsInvalidConfig(t *testing.T) {
	_, err := NewBuilder().WithTimeout(0).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithMaxImageDimension(-1).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithLowConfidenceThreshold(1.5).Build()
	require.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	rec := &stubRecEngine{payload: map[string]any{
		"texts":  []string{},
		"scores": []float64{},
	}}
	p := newStubPipeline(t, &stubDetEngine{}, rec, nil)
	assert.True(t, p.HealthCheck())

	failing := newStubPipeline(t, &stubDetEngine{err: errors.New("dead session")}, rec, nil)
	assert.False(t, failing.HealthCheck())
}
