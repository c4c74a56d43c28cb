// Package testutil provides synthetic image fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/stretchr/testify/require"
)

// BlankImage returns a white canvas.
func BlankImage(width, height int) *image.NRGBA {
	return imaging.New(width, height, color.White)
}

// GenerateTextImage renders text in black on a white canvas using the fixed
// 7x13 bitmap face. Not pretty, but deterministic and dependency-free, which
// is all the pipeline tests need.
func GenerateTextImage(text string, width, height int) *image.NRGBA {
	img := BlankImage(width, height)
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.I(4),
			Y: fixed.I(height/2 + basicfont.Face7x13.Height/2),
		},
	}
	drawer.DrawString(text)
	return img
}

// EncodePNG encodes an image to PNG bytes, failing the test on error.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
