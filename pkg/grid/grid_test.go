package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformGrid() GridConfig {
	return GridConfig{
		X: 20, Y: 100, Width: 560, Height: 640,
		Rows: 8, Columns: 2,
	}
}

func basicTemplate() CellTemplate {
	return CellTemplate{
		VoterIDBox: &Box{X: 180, Y: 4, Width: 96, Height: 14},
		NameBox:    &Box{X: 8, Y: 20, Width: 180, Height: 16},
		PhotoBox:   &Box{X: 210, Y: 24, Width: 60, Height: 50},
	}
}

func TestUniformGridTilesExactly(t *testing.T) {
	l, err := NewLayout(uniformGrid(), basicTemplate())
	require.NoError(t, err)

	require.Equal(t, 16, l.NumCells())

	var area float64
	for row := 0; row < l.Grid.Rows; row++ {
		for col := 0; col < l.Grid.Columns; col++ {
			cell := l.CellRect(row, col)
			area += cell.Width * cell.Height

			assert.GreaterOrEqual(t, cell.X, l.Grid.X)
			assert.GreaterOrEqual(t, cell.Y, l.Grid.Y)
			assert.LessOrEqual(t, cell.MaxX(), l.Grid.X+l.Grid.Width+1e-9)
			assert.LessOrEqual(t, cell.MaxY(), l.Grid.Y+l.Grid.Height+1e-9)
		}
	}
	assert.InDelta(t, l.Grid.Width*l.Grid.Height, area, 1e-6)
}

func TestUniformGridCellPositions(t *testing.T) {
	l, err := NewLayout(uniformGrid(), basicTemplate())
	require.NoError(t, err)

	// Cell size derives from the grid dimensions: 560/2 x 640/8.
	first := l.CellRect(0, 0)
	assert.Equal(t, Box{X: 20, Y: 100, Width: 280, Height: 80}, first)

	last := l.CellRect(7, 1)
	assert.Equal(t, Box{X: 300, Y: 660, Width: 280, Height: 80}, last)
}

func TestBreakpointPositionsAreAbsolute(t *testing.T) {
	// Grid origin away from the page origin; breakpoints are page
	// coordinates, not offsets from the grid corner.
	g := uniformGrid()
	g.ColPos = []float64{20, 295}
	g.RowPos = []float64{100, 178, 258, 340, 420, 500, 582, 660}

	l, err := NewLayout(g, basicTemplate())
	require.NoError(t, err)

	first := l.CellRect(0, 0)
	assert.InDelta(t, 20.0, first.X, 1e-9)
	assert.InDelta(t, 100.0, first.Y, 1e-9)
	assert.InDelta(t, 275.0, first.Width, 1e-9)
	assert.InDelta(t, 78.0, first.Height, 1e-9)

	// Last column runs from its breakpoint to the grid's right edge.
	right := l.CellRect(0, 1)
	assert.InDelta(t, 295.0, right.X, 1e-9)
	assert.InDelta(t, g.X+g.Width, right.MaxX(), 1e-9)

	// Last row runs from its breakpoint to the grid's bottom edge.
	bottom := l.CellRect(7, 0)
	assert.InDelta(t, 660.0, bottom.Y, 1e-9)
	assert.InDelta(t, g.Y+g.Height-560, bottom.Height, 1e-9)

	// Interior rows take their height from the next breakpoint.
	assert.InDelta(t, 80.0, l.CellRect(1, 0).Height, 1e-9)
}

func TestShortBreakpointListFallsBackToUniform(t *testing.T) {
	g := GridConfig{X: 0, Y: 0, Width: 300, Height: 200, Rows: 2, Columns: 3}
	g.ColPos = []float64{0, 90}

	l, err := NewLayout(g, basicTemplate())
	require.NoError(t, err)

	// Column 2 has no breakpoint and sits at its uniform position.
	cell := l.CellRect(0, 2)
	assert.InDelta(t, 200.0, cell.X, 1e-9)
	assert.InDelta(t, 100.0, cell.Width, 1e-9)
}

func TestFieldScalesWithCellSize(t *testing.T) {
	// Column 1 spans 200 points against a 100-point first column, so
	// every template box doubles horizontally there.
	g := GridConfig{X: 0, Y: 0, Width: 300, Height: 100, Rows: 1, Columns: 2}
	g.ColPos = []float64{0, 100}

	tpl := CellTemplate{VoterIDBox: &Box{X: 10, Y: 5, Width: 50, Height: 20}}
	l, err := NewLayout(g, tpl)
	require.NoError(t, err)

	sx, sy := l.CellScale(0, 0)
	assert.InDelta(t, 1.0, sx, 1e-9)
	assert.InDelta(t, 1.0, sy, 1e-9)

	narrow, ok := l.FieldRect(0, 0, tpl.VoterIDBox)
	require.True(t, ok)
	assert.InDelta(t, 10.0, narrow.X, 1e-9)
	assert.InDelta(t, 50.0, narrow.Width, 1e-9)

	sx, sy = l.CellScale(0, 1)
	assert.InDelta(t, 2.0, sx, 1e-9)
	assert.InDelta(t, 1.0, sy, 1e-9)

	wide, ok := l.FieldRect(0, 1, tpl.VoterIDBox)
	require.True(t, ok)
	assert.InDelta(t, 100.0+20.0, wide.X, 1e-9)
	assert.InDelta(t, 100.0, wide.Width, 1e-9)
	assert.InDelta(t, 20.0, wide.Height, 1e-9)
}

func TestTemplateScaleFromFirstCell(t *testing.T) {
	g := uniformGrid()
	g.ColPos = []float64{20, 295}
	g.RowPos = []float64{100, 178, 258, 340, 420, 500, 582, 660}

	tpl := basicTemplate()
	l, err := NewLayout(g, tpl)
	require.NoError(t, err)

	// A field box keeps its relative position within each cell.
	for _, cellIdx := range [][2]int{{0, 0}, {3, 1}, {7, 0}} {
		row, col := cellIdx[0], cellIdx[1]
		rect, ok := l.FieldRect(row, col, tpl.VoterIDBox)
		require.True(t, ok)
		cell := l.CellRect(row, col)
		assert.InDelta(t, tpl.VoterIDBox.X/275.0, (rect.X-cell.X)/cell.Width, 1e-9)
		assert.InDelta(t, tpl.VoterIDBox.Y/78.0, (rect.Y-cell.Y)/cell.Height, 1e-9)
	}
}

func TestFieldRectNilBox(t *testing.T) {
	l, err := NewLayout(uniformGrid(), basicTemplate())
	require.NoError(t, err)

	_, ok := l.FieldRect(0, 0, nil)
	assert.False(t, ok)
}

func TestFieldRectAbsolutePlacement(t *testing.T) {
	tpl := basicTemplate()
	l, err := NewLayout(uniformGrid(), tpl)
	require.NoError(t, err)

	rect, ok := l.FieldRect(2, 1, tpl.NameBox)
	require.True(t, ok)

	// Uniform grid, so scale is identity and the box translates as-is.
	cell := l.CellRect(2, 1)
	assert.InDelta(t, cell.X+tpl.NameBox.X, rect.X, 1e-9)
	assert.InDelta(t, cell.Y+tpl.NameBox.Y, rect.Y, 1e-9)
	assert.InDelta(t, tpl.NameBox.Width, rect.Width, 1e-9)
	assert.InDelta(t, tpl.NameBox.Height, rect.Height, 1e-9)
}

func TestNewLayoutValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GridConfig)
	}{
		{"zero rows", func(g *GridConfig) { g.Rows = 0 }},
		{"zero columns", func(g *GridConfig) { g.Columns = 0 }},
		{"negative width", func(g *GridConfig) { g.Width = -1 }},
		{"descending column positions", func(g *GridConfig) { g.ColPos = []float64{300, 100} }},
		{"descending row positions", func(g *GridConfig) { g.RowPos = []float64{400, 200} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := uniformGrid()
			tt.mutate(&g)
			_, err := NewLayout(g, basicTemplate())
			assert.Error(t, err)
		})
	}
}

func TestParseExtractionConfig(t *testing.T) {
	payload := []byte(`{
		"grid": {
			"x": 20, "y": 100, "width": 560, "height": 640,
			"rows": 8, "columns": 2
		},
		"cellTemplate": {
			"voterIdBox": {"x": 180, "y": 4, "width": 96, "height": 14},
			"nameBox": {"x": 8, "y": 20, "width": 180, "height": 16},
			"boothCenterBox": {"x": 40, "y": 10, "width": 300, "height": 20}
		},
		"skipPagesStart": 2,
		"skipPagesEnd": 1,
		"skipHeaderHeight": 95,
		"skipFooterHeight": 40,
		"boothCenter": "Zilla Parishad School",
		"boothAddress": "Ward 4, Main Road"
	}`)

	cfg, err := ParseExtractionConfig(payload)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Grid.Rows)
	assert.Equal(t, 2, cfg.Grid.Columns)
	require.NotNil(t, cfg.Template.VoterIDBox)
	require.NotNil(t, cfg.Template.BoothCenterBox)
	assert.Nil(t, cfg.Template.PhotoBox)
	assert.Equal(t, 2, cfg.SkipPagesStart)
	assert.Equal(t, 1, cfg.SkipPagesEnd)
	assert.Equal(t, 95.0, cfg.SkipHeaderHeight)
	assert.Equal(t, "Zilla Parishad School", cfg.BoothCenter)
}

func TestParseExtractionConfigRejectsBadPayloads(t *testing.T) {
	_, err := ParseExtractionConfig([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseExtractionConfig([]byte(`{
		"grid": {"x":0,"y":0,"width":100,"height":100,"rows":0,"columns":2},
		"cellTemplate": {}
	}`))
	assert.Error(t, err)

	_, err = ParseExtractionConfig([]byte(`{
		"grid": {"x":0,"y":0,"width":100,"height":100,"rows":2,"columns":2},
		"cellTemplate": {},
		"skipPagesStart": -1
	}`))
	assert.Error(t, err)
}
