package boxdetect

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drawRing paints a 3px dark rectangle outline, the way cell borders
// print on the roll.
func drawRing(img *image.RGBA, r image.Rectangle) {
	dark := image.NewUniform(color.RGBA{A: 255})
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+3), dark, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-3, r.Max.X, r.Max.Y), dark, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+3, r.Max.Y), dark, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-3, r.Min.Y, r.Max.X, r.Max.Y), dark, image.Point{}, draw.Src)
}

func testPage() (*image.RGBA, []image.Rectangle) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 340))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	cells := []image.Rectangle{
		image.Rect(20, 20, 170, 140),
		image.Rect(200, 20, 350, 140),
		image.Rect(20, 170, 170, 290),
		image.Rect(200, 170, 350, 290),
	}
	for _, c := range cells {
		drawRing(img, c)
	}
	return img, cells
}

func TestDetectBoxesFindsCellOutlines(t *testing.T) {
	img, cells := testPage()

	boxes := DetectBoxes(img, DefaultParams())
	require.Len(t, boxes, 4)

	for i, want := range cells {
		got := boxes[i]
		assert.InDelta(t, want.Min.X, got.Min.X, 2)
		assert.InDelta(t, want.Min.Y, got.Min.Y, 2)
		assert.InDelta(t, want.Dx(), got.Dx(), 4)
		assert.InDelta(t, want.Dy(), got.Dy(), 4)
	}
}

func TestDetectBoxesFiltersTinyComponents(t *testing.T) {
	img, _ := testPage()
	// A speck far too small to be a cell.
	drawRing(img, image.Rect(370, 300, 390, 320))

	boxes := DetectBoxes(img, DefaultParams())
	assert.Len(t, boxes, 4)
}

func TestInferGrid(t *testing.T) {
	img, _ := testPage()
	boxes := DetectBoxes(img, DefaultParams())

	cfg, ok := InferGrid(boxes, DefaultParams().GridTolerance)
	require.True(t, ok)

	assert.Equal(t, 2, cfg.Rows)
	assert.Equal(t, 2, cfg.Columns)
	assert.InDelta(t, 20, cfg.X, 3)
	assert.InDelta(t, 20, cfg.Y, 3)
	assert.InDelta(t, 330, cfg.Width, 6)
	assert.InDelta(t, 270, cfg.Height, 6)
	// Breakpoints carry absolute page coordinates.
	require.Len(t, cfg.ColPos, 2)
	require.Len(t, cfg.RowPos, 2)
	assert.InDelta(t, 20, cfg.ColPos[0], 3)
	assert.InDelta(t, 200, cfg.ColPos[1], 3)
	assert.InDelta(t, 20, cfg.RowPos[0], 3)
	assert.InDelta(t, 170, cfg.RowPos[1], 3)
}

func TestInferGridRejectsSparseBoxes(t *testing.T) {
	_, ok := InferGrid([]image.Rectangle{image.Rect(0, 0, 100, 100)}, 50)
	assert.False(t, ok)

	// Four boxes all in one row cluster to a single row.
	row := []image.Rectangle{
		image.Rect(0, 0, 100, 100),
		image.Rect(120, 0, 220, 100),
		image.Rect(240, 0, 340, 100),
		image.Rect(360, 0, 460, 100),
	}
	_, ok = InferGrid(row, 50)
	assert.False(t, ok)
}
