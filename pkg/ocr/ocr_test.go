package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareForOCRKeepsDimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 120, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 120; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	prepared := PrepareForOCR(src)
	require.NotNil(t, prepared)
	assert.Equal(t, 120, prepared.Bounds().Dx())
	assert.Equal(t, 40, prepared.Bounds().Dy())
}

func TestMedianDenoiseRemovesSpeckle(t *testing.T) {
	// White field with a single dark pixel; the median of every 3x3
	// window is white, so the speckle disappears.
	src := image.NewNRGBA(image.Rect(0, 0, 9, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	src.SetNRGBA(4, 4, color.NRGBA{A: 255})

	out := medianDenoise(src)
	assert.EqualValues(t, 255, out.NRGBAAt(4, 4).R)
}

func TestMedianDenoiseKeepsEdges(t *testing.T) {
	// A solid half-and-half split is its own median everywhere, so
	// genuine strokes survive the pass.
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := uint8(255)
			if x >= 4 {
				v = 0
			}
			src.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	out := medianDenoise(src)
	assert.EqualValues(t, 255, out.NRGBAAt(3, 4).R)
	assert.EqualValues(t, 0, out.NRGBAAt(4, 4).R)
}

func TestTextConfidence(t *testing.T) {
	assert.Equal(t, 0.0, textConfidence(""))
	assert.Equal(t, 0.0, textConfidence("  \n\t"))
	assert.Equal(t, 0.5, textConfidence("ab"))
	assert.Equal(t, 0.85, textConfidence("राम कुमार"))
	assert.Equal(t, 0.85, textConfidence("ABC1234567"))
}
