package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// DefaultMaxDimension bounds the longer side of a normalized image.
const DefaultMaxDimension = 2048

// DecodeImage decodes raw image bytes using the embedded format signature.
// Supported formats: JPEG, PNG, BMP, TIFF.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: errors.New("empty input")}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, format, nil
}

// NormalizeImage converts raw bytes into the pipeline's working representation:
// an NRGBA pixel buffer (alpha flattened by the decoder clone) whose longer
// side is at most maxDimension. Smaller images keep their original resolution.
// Deterministic: identical bytes yield an identical buffer.
func NormalizeImage(data []byte, maxDimension int) (*image.NRGBA, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}

	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	// Clone converts grayscale, paletted and alpha layouts into one model.
	nrgba := imaging.Clone(img)

	b := nrgba.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &ImageProcessingError{Operation: "normalize", Err: errors.New("decoded image has zero area")}
	}

	longer := w
	if h > longer {
		longer = h
	}
	if longer <= maxDimension {
		return nrgba, nil
	}

	ratio := float64(maxDimension) / float64(longer)
	newW := int(float64(w) * ratio)
	newH := int(float64(h) * ratio)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return imaging.Resize(nrgba, newW, newH, imaging.Lanczos), nil
}
