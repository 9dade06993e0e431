package preview

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votergrid/votergrid/pkg/grid"
)

type stubRenderer struct{}

func (stubRenderer) PageSize(int) (float64, float64, error) { return 200, 300, nil }

func (stubRenderer) RenderPage(int, float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 64, 96)), nil
}

func TestRenderProducesPDF(t *testing.T) {
	cfg := &grid.ExtractionConfig{
		Grid: grid.GridConfig{
			X: 10, Y: 20, Width: 180, Height: 260,
			Rows: 2, Columns: 2,
		},
		Template: grid.CellTemplate{
			VoterIDBox: &grid.Box{X: 5, Y: 5, Width: 60, Height: 12},
			PhotoBox:   &grid.Box{X: 60, Y: 20, Width: 25, Height: 30},
		},
		SkipHeaderHeight: 20,
	}

	data, err := Render(stubRenderer{}, 1, cfg)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output is not a PDF")
}

func TestRenderRejectsInvalidConfig(t *testing.T) {
	cfg := &grid.ExtractionConfig{
		Grid:     grid.GridConfig{Rows: 0, Columns: 2, Width: 100, Height: 100},
		Template: grid.CellTemplate{},
	}
	_, err := Render(stubRenderer{}, 1, cfg)
	assert.Error(t, err)
}
