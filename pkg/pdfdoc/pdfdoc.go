// Package pdfdoc gives the extraction pipeline uniform access to a
// scanned roll PDF: page geometry, rasterization at arbitrary DPI, and
// the embedded text layer with positions.
//
// Rendering goes through MuPDF (go-fitz); the text layer is read with a
// pure Go PDF parser so text queries do not depend on what MuPDF keeps
// of the content stream. Rendering handles are not safe for concurrent
// use, so each worker opens its own Document from the same raw bytes.
//
// Main Types:
//
// - Document: one open PDF with rendering and text access
// - Opener: constructor capability injected into the pipeline
package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	xdraw "golang.org/x/image/draw"

	"github.com/votergrid/votergrid/pkg/grid"
)

// BaseDPI is the PDF point resolution; rendered pixel coordinates are
// point coordinates times dpi/BaseDPI.
const BaseDPI = 72.0

// Document is one open PDF. Not safe for concurrent use; workers each
// open their own copy via Opener.
type Document struct {
	raw    []byte
	render *fitz.Document
	text   *pdf.Reader
}

// Opener opens a Document from raw PDF bytes. The pipeline carries an
// Opener instead of a Document so parallel workers can reopen the same
// bytes.
type Opener func(data []byte) (*Document, error)

// Open parses raw PDF bytes into a Document.
func Open(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("PDF data is empty")
	}

	render, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for rendering: %w", err)
	}

	// The text reader is optional: image-only scans have no text layer
	// worth parsing, and rendering still works without it.
	text, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		text = nil
	}

	return &Document{raw: data, render: render, text: text}, nil
}

// Close releases the MuPDF handle.
func (d *Document) Close() error {
	return d.render.Close()
}

// Bytes returns the raw PDF the document was opened from.
func (d *Document) Bytes() []byte {
	return d.raw
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.render.NumPage()
}

// PageSize returns the page dimensions in PDF points. Pages are 1-based.
func (d *Document) PageSize(pageNumber int) (width, height float64, err error) {
	bound, err := d.render.Bound(pageNumber - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get page %d bounds: %w", pageNumber, err)
	}
	return float64(bound.Dx()), float64(bound.Dy()), nil
}

// RenderPage rasterizes a full page at the given DPI. Pages are 1-based.
func (d *Document) RenderPage(pageNumber int, dpi float64) (image.Image, error) {
	img, err := d.render.ImageDPI(pageNumber-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNumber, err)
	}
	return img, nil
}

// RenderRegion rasterizes one rectangle of a page at the given DPI. The
// region is in PDF points; the returned image is cropped to it.
func (d *Document) RenderRegion(pageNumber int, region grid.Box, dpi float64) (image.Image, error) {
	full, err := d.RenderPage(pageNumber, dpi)
	if err != nil {
		return nil, err
	}

	scale := dpi / BaseDPI
	crop := image.Rect(
		int(region.X*scale),
		int(region.Y*scale),
		int(region.MaxX()*scale),
		int(region.MaxY()*scale),
	).Intersect(full.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("region %+v is outside page %d", region, pageNumber)
	}

	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	xdraw.Copy(out, image.Point{}, full, crop, xdraw.Src, nil)
	return out, nil
}

// HasTextLayer reports whether the PDF carries a parseable text layer.
func (d *Document) HasTextLayer() bool {
	return d.text != nil
}

// positioned is one text fragment in top-left page coordinates.
type positioned struct {
	x, y, w float64
	s       string
}

// TextInRegion returns the text layer content inside the region, in
// reading order. The region is in PDF points with a top-left origin;
// the text layer's bottom-left coordinates are flipped to match.
// Returns an empty string for image-only PDFs.
func (d *Document) TextInRegion(pageNumber int, region grid.Box) (string, error) {
	if d.text == nil {
		return "", nil
	}

	_, pageHeight, err := d.PageSize(pageNumber)
	if err != nil {
		return "", err
	}

	fragments, err := d.pageText(pageNumber)
	if err != nil {
		return "", err
	}

	var inside []positioned
	for _, f := range fragments {
		flippedY := pageHeight - f.y
		if f.x >= region.X && f.x <= region.MaxX() &&
			flippedY >= region.Y && flippedY <= region.MaxY() {
			inside = append(inside, positioned{x: f.x, y: flippedY, w: f.w, s: f.s})
		}
	}
	return assemble(inside), nil
}

// pageText reads the raw positioned fragments of one page. The parser
// panics on some malformed content streams; that is reported as an
// error rather than taking the worker down.
func (d *Document) pageText(pageNumber int) (fragments []positioned, err error) {
	defer func() {
		if r := recover(); r != nil {
			fragments = nil
			err = fmt.Errorf("text layer of page %d is unreadable: %v", pageNumber, r)
		}
	}()

	page := d.text.Page(pageNumber)
	if page.V.IsNull() {
		return nil, nil
	}

	content := page.Content()
	for _, t := range content.Text {
		fragments = append(fragments, positioned{x: t.X, y: t.Y, w: t.W, s: t.S})
	}
	return fragments, nil
}

// Line grouping tolerance and the horizontal gap that separates words,
// both in points.
const (
	lineTolerance = 2.0
	wordGap       = 1.0
)

// assemble orders fragments into lines and joins them the way the page
// reads: top to bottom, left to right, with spaces at word gaps.
func assemble(fragments []positioned) string {
	if len(fragments) == 0 {
		return ""
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		if diff := fragments[i].y - fragments[j].y; diff < -lineTolerance || diff > lineTolerance {
			return fragments[i].y < fragments[j].y
		}
		return fragments[i].x < fragments[j].x
	})

	var b strings.Builder
	lineY := fragments[0].y
	prevEnd := fragments[0].x
	for i, f := range fragments {
		switch {
		case i == 0:
		case f.y-lineY > lineTolerance:
			b.WriteByte('\n')
		case f.x-prevEnd > wordGap:
			b.WriteByte(' ')
		}
		b.WriteString(f.s)
		lineY = f.y
		prevEnd = f.x + f.w
	}
	return strings.TrimSpace(b.String())
}
