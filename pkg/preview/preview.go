// Package preview renders a calibration overlay so an operator can
// check a grid configuration against an actual scanned page before
// running a full extraction.
//
// The page is rasterized and placed as the background of a new PDF,
// then the grid outline, every cell boundary and the template's field
// boxes of the first cell are drawn on top in distinct colors. A
// misaligned configuration is obvious at a glance.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"codeberg.org/go-pdf/fpdf"

	"github.com/votergrid/votergrid/pkg/grid"
)

// Overlay colors: red grid outline, blue cell boundaries, green field
// boxes, amber photo box, gray extraction band limits.
var (
	gridColor  = rgb{220, 38, 38}
	cellColor  = rgb{37, 99, 235}
	fieldColor = rgb{22, 163, 74}
	photoColor = rgb{217, 119, 6}
	bandColor  = rgb{107, 114, 128}
)

type rgb struct{ r, g, b int }

// PageRenderer rasterizes one page of the source document, satisfied by
// *pdfdoc.Document.
type PageRenderer interface {
	PageSize(pageNumber int) (width, height float64, err error)
	RenderPage(pageNumber int, dpi float64) (image.Image, error)
}

// renderDPI keeps the background crisp enough to judge box alignment.
const renderDPI = 150.0

// Render draws the overlay for one page and returns the PDF bytes.
func Render(doc PageRenderer, pageNumber int, cfg *grid.ExtractionConfig) ([]byte, error) {
	layout, err := grid.NewLayout(cfg.Grid, cfg.Template)
	if err != nil {
		return nil, err
	}

	pageWidth, pageHeight, err := doc.PageSize(pageNumber)
	if err != nil {
		return nil, err
	}
	background, err := doc.RenderPage(pageNumber, renderDPI)
	if err != nil {
		return nil, err
	}

	var img bytes.Buffer
	if err := png.Encode(&img, background); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: pageWidth, Ht: pageHeight})

	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(img.Bytes()))
	pdf.ImageOptions("page", 0, 0, pageWidth, pageHeight, false, opts, 0, "")

	drawBand(pdf, cfg, pageWidth, pageHeight)
	drawGrid(pdf, layout)
	drawTemplate(pdf, layout)

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("failed to generate preview PDF: %w", err)
	}
	return out.Bytes(), nil
}

func drawBand(pdf *fpdf.Fpdf, cfg *grid.ExtractionConfig, pageWidth, pageHeight float64) {
	if cfg.SkipHeaderHeight <= 0 && cfg.SkipFooterHeight <= 0 {
		return
	}
	setColor(pdf, bandColor)
	pdf.SetLineWidth(1)
	if cfg.SkipHeaderHeight > 0 {
		pdf.Line(0, cfg.SkipHeaderHeight, pageWidth, cfg.SkipHeaderHeight)
	}
	if cfg.SkipFooterHeight > 0 {
		pdf.Line(0, pageHeight-cfg.SkipFooterHeight, pageWidth, pageHeight-cfg.SkipFooterHeight)
	}
}

func drawGrid(pdf *fpdf.Fpdf, layout *grid.Layout) {
	setColor(pdf, gridColor)
	pdf.SetLineWidth(2)
	g := layout.Grid
	pdf.Rect(g.X, g.Y, g.Width, g.Height, "D")

	setColor(pdf, cellColor)
	pdf.SetLineWidth(0.75)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Columns; col++ {
			cell := layout.CellRect(row, col)
			pdf.Rect(cell.X, cell.Y, cell.Width, cell.Height, "D")
		}
	}
}

// drawTemplate outlines the field boxes of the first cell, where the
// template was calibrated.
func drawTemplate(pdf *fpdf.Fpdf, layout *grid.Layout) {
	t := layout.Template
	boxes := []struct {
		box   *grid.Box
		color rgb
		label string
	}{
		{t.VoterIDBox, fieldColor, "id"},
		{t.NameBox, fieldColor, "name"},
		{t.RelativeNameBox, fieldColor, "rel"},
		{t.HouseNumberBox, fieldColor, "house"},
		{t.GenderBox, fieldColor, "sex"},
		{t.AgeBox, fieldColor, "age"},
		{t.AssemblyNumberBox, fieldColor, "asm"},
		{t.SerialNumberBox, fieldColor, "serial"},
		{t.PhotoBox, photoColor, "photo"},
	}

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetLineWidth(0.75)
	for _, entry := range boxes {
		rect, ok := layout.FieldRect(0, 0, entry.box)
		if !ok {
			continue
		}
		setColor(pdf, entry.color)
		pdf.Rect(rect.X, rect.Y, rect.Width, rect.Height, "D")
		pdf.SetTextColor(entry.color.r, entry.color.g, entry.color.b)
		pdf.Text(rect.X+1, rect.Y-1, entry.label)
	}
}

func setColor(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetDrawColor(c.r, c.g, c.b)
}
