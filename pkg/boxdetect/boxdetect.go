// Package boxdetect locates the printed cell boxes on a rendered roll
// page, for calibrating a grid without manual measurement.
//
// The page image is adaptively thresholded so the printed rules stand
// out regardless of scan brightness, connected dark regions are labeled,
// and components shaped like voter cells (by area and aspect ratio) are
// kept. Clustering the surviving boxes by row and column yields a grid
// configuration the calibration tool can offer as a starting point.
package boxdetect

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/votergrid/votergrid/pkg/grid"
)

// Params controls detection. The defaults match 200 DPI page renders of
// standard roll layouts.
type Params struct {
	MinArea         int     // Smallest component kept, in pixels
	MaxArea         int     // Largest component kept, in pixels
	MinAspect       float64 // Width/height lower bound
	MaxAspect       float64 // Width/height upper bound
	GridTolerance   int     // Pixel slack when clustering rows/columns
	ThresholdWindow int     // Adaptive threshold neighborhood, odd
	ThresholdBias   int     // Subtracted from the local mean
}

// DefaultParams returns the production detection parameters.
func DefaultParams() Params {
	return Params{
		MinArea:         5000,
		MaxArea:         500000,
		MinAspect:       0.3,
		MaxAspect:       3.0,
		GridTolerance:   50,
		ThresholdWindow: 11,
		ThresholdBias:   2,
	}
}

// DetectBoxes finds cell-shaped dark components in the page image and
// returns their bounding rectangles, sorted top to bottom then left to
// right.
func DetectBoxes(img image.Image, p Params) []image.Rectangle {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	mask := threshold(gray, w, h, p.ThresholdWindow, p.ThresholdBias)
	boxes := components(mask, w, h, p)

	sort.Slice(boxes, func(i, j int) bool {
		if boxes[i].Min.Y != boxes[j].Min.Y {
			return boxes[i].Min.Y < boxes[j].Min.Y
		}
		return boxes[i].Min.X < boxes[j].Min.X
	})
	return boxes
}

// threshold marks pixels darker than their local mean, using an
// integral image so the window size does not matter for speed.
func threshold(gray *image.NRGBA, w, h, window, bias int) []bool {
	if window < 3 {
		window = 3
	}
	radius := window / 2

	// Summed-area table, one row/col of padding.
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(gray.NRGBAAt(x, y).R)
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-radius), min(h-1, y+radius)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-radius), min(w-1, x+radius)
			count := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*(w+1)+x1+1] -
				integral[y0*(w+1)+x1+1] -
				integral[(y1+1)*(w+1)+x0] +
				integral[y0*(w+1)+x0]
			mean := sum / count
			v := int64(gray.NRGBAAt(x, y).R)
			mask[y*w+x] = v < mean-int64(bias)
		}
	}
	return mask
}

// components labels 4-connected foreground regions and keeps those
// shaped like cells.
func components(mask []bool, w, h int, p Params) []image.Rectangle {
	visited := make([]bool, len(mask))
	var boxes []image.Rectangle
	queue := make([]int, 0, 1024)

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}

		minX, minY := start%w, start/w
		maxX, maxY := minX, minY
		area := 0

		queue = append(queue[:0], start)
		visited[start] = true
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%w, idx/w
			area++

			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for _, n := range [4]int{idx - 1, idx + 1, idx - w, idx + w} {
				if n < 0 || n >= len(mask) {
					continue
				}
				// Row wrap guard for horizontal neighbors.
				if (n == idx-1 && x == 0) || (n == idx+1 && x == w-1) {
					continue
				}
				if mask[n] && !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}

		boxW, boxH := maxX-minX+1, maxY-minY+1
		boxArea := boxW * boxH
		if boxArea < p.MinArea || boxArea > p.MaxArea {
			continue
		}
		aspect := float64(boxW) / float64(boxH)
		if aspect < p.MinAspect || aspect > p.MaxAspect {
			continue
		}
		boxes = append(boxes, image.Rect(minX, minY, maxX+1, maxY+1))
	}
	return boxes
}

// InferGrid clusters detected boxes into rows and columns and derives a
// grid configuration. Returns false when the boxes do not form at least
// a 2x2 arrangement.
func InferGrid(boxes []image.Rectangle, tolerance int) (grid.GridConfig, bool) {
	if len(boxes) < 4 {
		return grid.GridConfig{}, false
	}

	rowStarts := cluster(boxes, tolerance, func(r image.Rectangle) int { return r.Min.Y })
	colStarts := cluster(boxes, tolerance, func(r image.Rectangle) int { return r.Min.X })
	if len(rowStarts) < 2 || len(colStarts) < 2 {
		return grid.GridConfig{}, false
	}

	minX, minY := boxes[0].Min.X, boxes[0].Min.Y
	maxX, maxY := boxes[0].Max.X, boxes[0].Max.Y
	for _, b := range boxes[1:] {
		minX, minY = min(minX, b.Min.X), min(minY, b.Min.Y)
		maxX, maxY = max(maxX, b.Max.X), max(maxY, b.Max.Y)
	}

	cfg := grid.GridConfig{
		X:       float64(minX),
		Y:       float64(minY),
		Width:   float64(maxX - minX),
		Height:  float64(maxY - minY),
		Rows:    len(rowStarts),
		Columns: len(colStarts),
	}

	// Publish breakpoints so uneven row/column starts survive into
	// the configuration. Positions are absolute page coordinates.
	cfg.ColPos = coords(colStarts)
	cfg.RowPos = coords(rowStarts)
	return cfg, true
}

// cluster groups box coordinates that sit within tolerance of each
// other and returns one representative (the smallest) per group, sorted.
func cluster(boxes []image.Rectangle, tolerance int, key func(image.Rectangle) int) []int {
	values := make([]int, len(boxes))
	for i, b := range boxes {
		values[i] = key(b)
	}
	sort.Ints(values)

	var starts []int
	for _, v := range values {
		if len(starts) == 0 || v-starts[len(starts)-1] > tolerance {
			starts = append(starts, v)
		}
	}
	return starts
}

func coords(starts []int) []float64 {
	out := make([]float64, len(starts))
	for i, s := range starts {
		out[i] = float64(s)
	}
	return out
}
