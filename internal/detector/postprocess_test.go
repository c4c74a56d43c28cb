package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapWith fills a w*h probability map with background and sets the given
// rectangle to value.
func mapWith(w, h int, x1, y1, x2, y2 int, value float32) []float32 {
	m := make([]float32, w*h)
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			m[y*w+x] = value
		}
	}
	return m
}

func testPostprocessConfig() Config {
	cfg := DefaultConfig()
	cfg.ProbThresh = 0.3
	cfg.BoxThresh = 0.6
	cfg.MinRegionPx = 3
	return cfg
}

func TestProbabilityMapToBoxes_SingleComponent(t *testing.T) {
	m := mapWith(32, 32, 4, 4, 12, 9, 0.9)
	boxes := probabilityMapToBoxes(m, 32, 32, testPostprocessConfig())
	require.Len(t, boxes, 1)
	assert.Equal(t, 4, boxes[0].minX)
	assert.Equal(t, 4, boxes[0].minY)
	assert.Equal(t, 12, boxes[0].maxX)
	assert.Equal(t, 9, boxes[0].maxY)
	assert.InDelta(t, 0.9, boxes[0].score, 1e-6)
}

func TestProbabilityMapToBoxes_EmptyMap(t *testing.T) {
	m := make([]float32, 32*32)
	boxes := probabilityMapToBoxes(m, 32, 32, testPostprocessConfig())
	assert.Empty(t, boxes)
}

func TestProbabilityMapToBoxes_LowScoreComponentDropped(t *testing.T) {
	// Above the binarization threshold but below the box score threshold.
	m := mapWith(32, 32, 4, 4, 12, 9, 0.4)
	boxes := probabilityMapToBoxes(m, 32, 32, testPostprocessConfig())
	assert.Empty(t, boxes)
}

func TestProbabilityMapToBoxes_TinyComponentDropped(t *testing.T) {
	m := mapWith(32, 32, 4, 4, 5, 5, 0.9) // 2x2, below MinRegionPx
	boxes := probabilityMapToBoxes(m, 32, 32, testPostprocessConfig())
	assert.Empty(t, boxes)
}

func TestProbabilityMapToBoxes_SeparateComponents(t *testing.T) {
	m := mapWith(64, 32, 2, 2, 10, 8, 0.9)
	for y := 2; y <= 8; y++ {
		for x := 30; x <= 40; x++ {
			m[y*64+x] = 0.8
		}
	}
	boxes := probabilityMapToBoxes(m, 64, 32, testPostprocessConfig())
	require.Len(t, boxes, 2)
}

func TestProbabilityMapToBoxes_NoRowWrap(t *testing.T) {
	// Two blobs touching opposite edges of adjacent rows must not merge.
	w, h := 32, 32
	m := make([]float32, w*h)
	for y := 4; y <= 10; y++ {
		for x := 0; x <= 4; x++ {
			m[y*w+x] = 0.9
		}
		for x := w - 5; x < w; x++ {
			m[y*w+x] = 0.9
		}
	}
	boxes := probabilityMapToBoxes(m, w, h, testPostprocessConfig())
	require.Len(t, boxes, 2)
}

func TestComponentBox_QuadScaling(t *testing.T) {
	b := componentBox{minX: 2, minY: 3, maxX: 5, maxY: 7}
	q := b.quad(2.0, 0.5)
	require.Len(t, q, 4)
	assert.InDelta(t, 4.0, q[0].X, 1e-9)
	assert.InDelta(t, 1.5, q[0].Y, 1e-9)
	assert.InDelta(t, 12.0, q[2].X, 1e-9)
	assert.InDelta(t, 4.0, q[2].Y, 1e-9)
}
