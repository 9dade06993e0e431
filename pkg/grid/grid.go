// Package grid models the cell geometry of scanned electoral roll pages.
//
// An electoral roll page lays voter entries out in a regular grid. The grid
// is described by an origin, overall dimensions and a row/column count, with
// either uniform cell sizes or explicit per-column/per-row breakpoints for
// scans where the printed grid is not perfectly regular. Field positions
// inside a cell are described once by a cell template and scaled to the
// actual cell dimensions of each page.
//
// Key Features:
//
// - Uniform and breakpoint-based grid layouts
// - Template scaling so one field layout serves any cell size
// - Absolute field rectangles in PDF point coordinates
// - JSON configuration matching the calibration tool output
//
// Main Types:
//
// - GridConfig: grid origin, dimensions and cell layout
// - CellTemplate: relative field boxes within a reference cell
// - Layout: resolved geometry answering cell and field rectangle queries
package grid

import (
	"encoding/json"
	"fmt"
	"os"
)

// Box is an axis-aligned rectangle in PDF point coordinates,
// origin at the top-left of the page.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MaxX returns the right edge of the box.
func (b Box) MaxX() float64 { return b.X + b.Width }

// MaxY returns the bottom edge of the box.
func (b Box) MaxY() float64 { return b.Y + b.Height }

// Scale returns the box with both offsets and dimensions scaled.
func (b Box) Scale(sx, sy float64) Box {
	return Box{
		X:      b.X * sx,
		Y:      b.Y * sy,
		Width:  b.Width * sx,
		Height: b.Height * sy,
	}
}

// Translate returns the box shifted by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{X: b.X + dx, Y: b.Y + dy, Width: b.Width, Height: b.Height}
}

// GridConfig describes the voter entry grid on a page.
//
// When ColPos/RowPos are empty the grid is uniform: cells are
// Width/Columns by Height/Rows. When breakpoints are present each entry
// is the absolute page coordinate of a column/row start; the last listed
// column/row extends to the grid boundary, and columns or rows beyond
// the list fall back to the uniform position.
type GridConfig struct {
	X       float64   `json:"x"`      // Grid origin, left edge
	Y       float64   `json:"y"`      // Grid origin, top edge
	Width   float64   `json:"width"`  // Total grid width
	Height  float64   `json:"height"` // Total grid height
	Rows    int       `json:"rows"`
	Columns int       `json:"columns"`
	ColPos  []float64 `json:"colPositions,omitempty"` // Absolute column start coordinates
	RowPos  []float64 `json:"rowPositions,omitempty"` // Absolute row start coordinates
}

// CellTemplate positions the voter entry fields inside the first cell of
// the grid. All boxes are relative to the cell's top-left corner and are
// scaled by the ratio of each cell's actual size to the first cell's size
// before use. Nil boxes mark fields absent from the layout.
type CellTemplate struct {
	VoterIDBox        *Box `json:"voterIdBox,omitempty"`
	NameBox           *Box `json:"nameBox,omitempty"`
	RelativeNameBox   *Box `json:"relativeNameBox,omitempty"`
	HouseNumberBox    *Box `json:"houseNumberBox,omitempty"`
	GenderBox         *Box `json:"genderBox,omitempty"`
	AgeBox            *Box `json:"ageBox,omitempty"`
	AssemblyNumberBox *Box `json:"assemblyNumberBox,omitempty"`
	SerialNumberBox   *Box `json:"serialNumberBox,omitempty"`
	PhotoBox          *Box `json:"photoBox,omitempty"`

	// Page-level fields. Unlike the cell fields these boxes are absolute
	// page coordinates (offset by the configured header height), read once
	// per page rather than per cell.
	BoothCenterBox  *Box `json:"boothCenterBox,omitempty"`
	BoothAddressBox *Box `json:"boothAddressBox,omitempty"`
}

// ExtractionConfig is the full calibration payload for one roll layout:
// grid geometry, cell template, page range and booth metadata carried
// through to the output records.
type ExtractionConfig struct {
	Grid     GridConfig   `json:"grid"`
	Template CellTemplate `json:"cellTemplate"`

	// HeaderTemplate, when present, supplies the page-level booth boxes
	// instead of the cell template.
	HeaderTemplate *CellTemplate `json:"headerTemplate,omitempty"`

	// Pages dropped from the front and the back of the document, for
	// rolls with cover and summary pages.
	SkipPagesStart int `json:"skipPagesStart,omitempty"`
	SkipPagesEnd   int `json:"skipPagesEnd,omitempty"`

	// Vertical band outside which cells are not extracted. Header height is
	// measured from the page top, footer height from the page bottom.
	SkipHeaderHeight float64 `json:"skipHeaderHeight,omitempty"`
	SkipFooterHeight float64 `json:"skipFooterHeight,omitempty"`

	BoothCenter  string `json:"boothCenter,omitempty"`
	BoothAddress string `json:"boothAddress,omitempty"`
}

// ParseExtractionConfig decodes and validates a JSON calibration payload.
func ParseExtractionConfig(data []byte) (*ExtractionConfig, error) {
	var cfg ExtractionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse extraction config: %w", err)
	}
	if _, err := NewLayout(cfg.Grid, cfg.Template); err != nil {
		return nil, err
	}
	if cfg.SkipPagesStart < 0 || cfg.SkipPagesEnd < 0 {
		return nil, fmt.Errorf("page skip counts must not be negative, got %d/%d", cfg.SkipPagesStart, cfg.SkipPagesEnd)
	}
	return &cfg, nil
}

// LoadExtractionConfig reads a calibration file from disk.
func LoadExtractionConfig(path string) (*ExtractionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction config: %w", err)
	}
	return ParseExtractionConfig(data)
}

// Layout is a validated grid with cell sizes resolved.
// It answers geometry queries for every cell on a page.
type Layout struct {
	Grid     GridConfig
	Template CellTemplate

	cellW  float64 // uniform cell width, Width / Columns
	cellH  float64 // uniform cell height, Height / Rows
	firstW float64 // first cell width, the template reference size
	firstH float64
}

// NewLayout validates the grid and resolves the uniform cell size and
// the first cell's actual dimensions, which serve as the template's
// reference size.
func NewLayout(g GridConfig, t CellTemplate) (*Layout, error) {
	if g.Rows < 1 || g.Columns < 1 {
		return nil, fmt.Errorf("grid must have at least one row and column, got %dx%d", g.Rows, g.Columns)
	}
	if g.Width <= 0 || g.Height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %gx%g", g.Width, g.Height)
	}

	l := &Layout{Grid: g, Template: t}
	l.cellW = g.Width / float64(g.Columns)
	l.cellH = g.Height / float64(g.Rows)

	// Every cell's template scale is measured against the first cell,
	// so a template calibrated there transfers to the whole grid.
	l.firstW = l.cellW
	l.firstH = l.cellH
	if len(g.ColPos) > 1 {
		l.firstW = g.ColPos[1] - g.ColPos[0]
	}
	if len(g.RowPos) > 1 {
		l.firstH = g.RowPos[1] - g.RowPos[0]
	}
	if l.firstW <= 0 || l.firstH <= 0 {
		return nil, fmt.Errorf("grid positions produce a non-positive first cell (%gx%g)", l.firstW, l.firstH)
	}
	return l, nil
}

// NumCells returns the total cell count of one page.
func (l *Layout) NumCells() int { return l.Grid.Rows * l.Grid.Columns }

// CellRect returns the absolute rectangle of the cell at (row, col),
// both 0-based. Breakpoint positions are absolute page coordinates; the
// last listed column and row extend to the grid boundary, and indexes
// beyond the breakpoint list fall back to the uniform position.
func (l *Layout) CellRect(row, col int) Box {
	g := l.Grid

	x := g.X + float64(col)*l.cellW
	w := l.cellW
	if col < len(g.ColPos) {
		x = g.ColPos[col]
		if col+1 < len(g.ColPos) {
			w = g.ColPos[col+1] - x
		} else {
			w = g.X + g.Width - x
		}
	}

	y := g.Y + float64(row)*l.cellH
	h := l.cellH
	if row < len(g.RowPos) {
		y = g.RowPos[row]
		if row+1 < len(g.RowPos) {
			h = g.RowPos[row+1] - y
		} else {
			h = g.Y + g.Height - y
		}
	}

	return Box{X: x, Y: y, Width: w, Height: h}
}

// CellScale returns the scale factors mapping template boxes into the
// cell at (row, col): the ratio of that cell's dimensions to the first
// cell's. On a uniform grid the scale is 1 everywhere.
func (l *Layout) CellScale(row, col int) (sx, sy float64) {
	cell := l.CellRect(row, col)
	return cell.Width / l.firstW, cell.Height / l.firstH
}

// FieldRect places a template box inside the cell at (row, col) and
// returns its absolute rectangle. Returns false when the box is nil.
func (l *Layout) FieldRect(row, col int, b *Box) (Box, bool) {
	if b == nil {
		return Box{}, false
	}
	cell := l.CellRect(row, col)
	sx, sy := l.CellScale(row, col)
	scaled := b.Scale(sx, sy)
	return scaled.Translate(cell.X, cell.Y), true
}
