// Package vision provides cloud text annotation for scanned roll pages.
//
// The pipeline renders each page once at a fixed scale, sends it to a
// cloud OCR provider in a single call, and caches the positioned word
// annotations that come back. Cell fields are then answered from the
// cache by geometric overlap, so a page costs one API call no matter how
// many cells it holds. A direct region annotator exists for the rare
// case where a page has no usable cache.
//
// Key Features:
//
// - One batch annotation call per page with positioned words
// - Region queries against cached annotations, no extra API traffic
// - Google Cloud Vision and Document AI providers
// - hOCR export of cached page annotations
//
// Main Types:
//
// - PageAnnotations: cached word boxes for one rendered page
// - PageAnnotator / RegionAnnotator: provider interfaces
package vision

import (
	"context"
	"image"
	"strings"
	"time"
	"unicode"
)

// RenderScale is the fixed scale pages are rendered at before cloud
// annotation. Region queries multiply PDF point coordinates by this
// factor to land in image pixel space.
const RenderScale = 2.0

// CallTimeout bounds every cloud API request. A request that outlives it
// fails like any other provider error, and the caller falls through to
// its next strategy.
const CallTimeout = 60 * time.Second

// Annotation is one detected word with its bounding box in image pixels.
type Annotation struct {
	Text   string
	X      int
	Y      int
	Width  int
	Height int
}

// PageAnnotations caches the cloud OCR result for one rendered page.
type PageAnnotations struct {
	PageNumber  int          // 1-based page number
	ImageWidth  int          // Rendered page width in pixels
	ImageHeight int          // Rendered page height in pixels
	FullText    string       // Whole-page text as returned by the provider
	Annotations []Annotation // Per-word boxes, provider order
}

// Valid reports whether the cache holds any annotations worth querying.
func (p *PageAnnotations) Valid() bool {
	return p != nil && len(p.Annotations) > 0
}

// Query collects the text of every annotation overlapping the given
// rectangle, in the order the provider returned them, joined by single
// spaces. Coordinates are in image pixels. Any overlap counts; words
// straddling the region boundary belong to the region.
func (p *PageAnnotations) Query(x, y, width, height float64) (string, float64) {
	if !p.Valid() {
		return "", 0
	}

	var texts []string
	for _, ann := range p.Annotations {
		annMaxX := float64(ann.X + ann.Width)
		annMaxY := float64(ann.Y + ann.Height)
		if float64(ann.X) < x+width && annMaxX > x &&
			float64(ann.Y) < y+height && annMaxY > y {
			texts = append(texts, ann.Text)
		}
	}
	if len(texts) == 0 {
		return "", 0
	}

	combined := strings.TrimSpace(strings.Join(texts, " "))
	return combined, EstimateConfidence(combined)
}

// QueryRegion is Query with PDF point coordinates, scaled by RenderScale
// into the rendered image space.
func (p *PageAnnotations) QueryRegion(x, y, width, height float64) (string, float64) {
	return p.Query(x*RenderScale, y*RenderScale, width*RenderScale, height*RenderScale)
}

// Result is the outcome of a single text extraction.
type Result struct {
	Text       string
	Confidence float64
}

// PageAnnotator produces cached annotations for a full rendered page.
type PageAnnotator interface {
	AnnotatePage(ctx context.Context, pageNumber int, img image.Image) (*PageAnnotations, error)
}

// RegionAnnotator reads text from a single cropped region image.
// Used only when no valid page cache exists.
type RegionAnnotator interface {
	AnnotateRegion(ctx context.Context, img image.Image) (Result, error)
}

// EstimateConfidence scores extracted text by shape. Cloud providers do
// not return a per-region confidence, so length and character mix stand
// in for one.
func EstimateConfidence(text string) float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	confidence := 0.7
	if len(text) > 3 {
		confidence = 0.8
	}

	var hasLetters, hasDigits bool
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetters = true
		}
		if unicode.IsDigit(r) {
			hasDigits = true
		}
	}
	if hasLetters && hasDigits {
		confidence = 0.85
	}

	if len(trimmed) < 2 {
		confidence *= 0.5
	}
	return confidence
}
