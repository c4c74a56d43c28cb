package onnx

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	data := make([]float32, 3*4*5)
	tensor, err := NewImageTensor(data, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, tensor.Shape)

	_, err = NewImageTensor(data, 3, 4, 6)
	require.Error(t, err)

	_, err = NewImageTensor(nil, 3, 4, 5)
	require.Error(t, err)
}

func TestNewBatchImageTensor(t *testing.T) {
	per := 3 * 2 * 2
	a := make([]float32, per)
	b := make([]float32, per)
	for i := range b {
		b[i] = 1
	}

	tensor, err := NewBatchImageTensor([][]float32{a, b}, 3, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 2, 2}, tensor.Shape)
	assert.Equal(t, float32(0), tensor.Data[0])
	assert.Equal(t, float32(1), tensor.Data[per])

	_, err = NewBatchImageTensor(nil, 3, 2, 2)
	require.Error(t, err)

	_, err = NewBatchImageTensor([][]float32{a, b[:per-1]}, 3, 2, 2)
	require.Error(t, err)
}

func TestImageToCHW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.Set(1, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255})

	out := ImageToCHW(img, [3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	require.Len(t, out, 6)
	assert.InDelta(t, 1.0, out[0], 1e-6) // R of pixel 0
	assert.InDelta(t, 0.0, out[1], 1e-6) // R of pixel 1
	assert.InDelta(t, 1.0, out[3], 1e-6) // G of pixel 1
}

func TestImageToCHW_Normalization(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out := ImageToCHW(img, [3]float32{0.5, 0.5, 0.5}, [3]float32{0.5, 0.5, 0.5})
	for _, v := range out {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestValidateNCHW(t *testing.T) {
	assert.NoError(t, ValidateNCHW([]int64{1, 3, 48, 320}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, 48}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, 0, 320}))
}
