// Package ocr runs local Tesseract recognition on cell region images.
//
// Regions are rendered at 400 DPI and preprocessed (grayscale, contrast,
// sharpening, median denoise) before recognition, which is what lifts Devanagari
// accuracy on low quality scans. Recognition runs in eng+hin so EPIC
// numbers and Marathi names come out of the same pass.
//
// The Engine interface decouples the pipeline from Tesseract so tests
// can substitute a canned engine.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// DPI is the render resolution for local OCR regions.
const DPI = 400.0

// Languages is the Tesseract language pack combination for roll text.
const Languages = "eng+hin"

// Result carries recognized text with the engine's mean confidence
// scaled to [0,1].
type Result struct {
	Text       string
	Confidence float64
}

// Engine recognizes text in a preprocessed region image.
type Engine interface {
	Recognize(img image.Image) (Result, error)
	Close() error
}

// Tesseract wraps a gosseract client configured for roll cells.
// A client holds a native Tesseract handle, so each worker constructs
// its own and closes it when done.
type Tesseract struct {
	client *gosseract.Client
}

// NewTesseract constructs an engine with eng+hin and a uniform text
// block segmentation mode, matching how cell fields are printed.
func NewTesseract() (*Tesseract, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng", "hin"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &Tesseract{client: client}, nil
}

// Recognize preprocesses the image and runs Tesseract on it.
func (t *Tesseract) Recognize(img image.Image) (Result, error) {
	prepared := PrepareForOCR(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return Result{}, fmt.Errorf("failed to encode region image: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("failed to load region image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognition failed: %w", err)
	}

	return Result{Text: text, Confidence: textConfidence(text)}, nil
}

// Close releases the native Tesseract handle.
func (t *Tesseract) Close() error {
	return t.client.Close()
}

// PrepareForOCR converts a region render into the form Tesseract reads
// best: grayscale, doubled contrast, mild sharpening and a 3x3 median
// pass to knock out scan speckle.
func PrepareForOCR(img image.Image) image.Image {
	prepared := imaging.Grayscale(img)
	prepared = imaging.AdjustContrast(prepared, 50)
	prepared = imaging.Sharpen(prepared, 1.5)
	return medianDenoise(prepared)
}

// medianDenoise replaces each pixel with the median of its 3x3
// neighborhood. The input is already grayscale, so the red channel
// decides the median for all three.
func medianDenoise(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	var window [9]uint8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < b.Min.X || nx >= b.Max.X || ny < b.Min.Y || ny >= b.Max.Y {
						continue
					}
					window[n] = img.NRGBAAt(nx, ny).R
					n++
				}
			}
			m := medianOf(window[:n])
			out.SetNRGBA(x, y, color.NRGBA{R: m, G: m, B: m, A: 255})
		}
	}
	return out
}

// medianOf sorts in place and returns the middle value. Windows hold
// at most nine samples, so insertion sort wins here.
func medianOf(vals []uint8) uint8 {
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && vals[j] < vals[j-1]; j-- {
			vals[j], vals[j-1] = vals[j-1], vals[j]
		}
	}
	return vals[len(vals)/2]
}

// textConfidence scores OCR output by shape; gosseract's plain Text call
// does not expose per-word confidences.
func textConfidence(text string) float64 {
	cleaned := 0
	for _, r := range text {
		if r != ' ' && r != '\n' && r != '\t' {
			cleaned++
		}
	}
	switch {
	case cleaned == 0:
		return 0
	case cleaned < 3:
		return 0.5
	default:
		return 0.85
	}
}
