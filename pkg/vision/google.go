package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"
)

// jpegQuality matches the quality pages are uploaded at; higher costs
// bandwidth without improving detection.
const jpegQuality = 90

// defaultLanguageHints biases detection towards the scripts on the roll.
var defaultLanguageHints = []string{"en", "hi"}

// GoogleVision annotates images with the Google Cloud Vision API.
// It implements both PageAnnotator and RegionAnnotator.
type GoogleVision struct {
	service *visionapi.Service
	hints   []string
}

// GoogleVisionOption customizes the provider.
type GoogleVisionOption func(*GoogleVision)

// WithLanguageHints overrides the default en/hi detection hints.
func WithLanguageHints(hints []string) GoogleVisionOption {
	return func(g *GoogleVision) {
		if len(hints) > 0 {
			g.hints = hints
		}
	}
}

// NewGoogleVision creates a Vision API provider. Pass a service account
// key file path, an API key (recognized by its AIza prefix), or an empty
// string to use ambient application default credentials.
func NewGoogleVision(ctx context.Context, credentials string, opts ...GoogleVisionOption) (*GoogleVision, error) {
	credentials = strings.Trim(strings.TrimSpace(credentials), `"'`)

	var clientOpts []option.ClientOption
	switch {
	case credentials == "":
		// Application default credentials.
	case strings.HasPrefix(credentials, "AIza"):
		clientOpts = append(clientOpts, option.WithAPIKey(credentials))
	default:
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentials))
	}

	service, err := visionapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision API service: %w", err)
	}

	g := &GoogleVision{service: service, hints: defaultLanguageHints}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// AnnotatePage sends one full page image through text detection and
// returns the positioned word annotations for caching.
func (g *GoogleVision) AnnotatePage(ctx context.Context, pageNumber int, img image.Image) (*PageAnnotations, error) {
	annotations, err := g.annotate(ctx, img, 1000)
	if err != nil {
		return nil, fmt.Errorf("page %d annotation failed: %w", pageNumber, err)
	}

	bounds := img.Bounds()
	page := &PageAnnotations{
		PageNumber:  pageNumber,
		ImageWidth:  bounds.Dx(),
		ImageHeight: bounds.Dy(),
	}
	if len(annotations) == 0 {
		return page, nil
	}

	// The first annotation is the whole-page text, the rest are words.
	page.FullText = annotations[0].Description
	for _, ann := range annotations[1:] {
		if box, ok := annotationBox(ann); ok {
			box.Text = strings.TrimSpace(ann.Description)
			page.Annotations = append(page.Annotations, box)
		}
	}
	return page, nil
}

// AnnotateRegion runs text detection on a single cropped region.
func (g *GoogleVision) AnnotateRegion(ctx context.Context, img image.Image) (Result, error) {
	annotations, err := g.annotate(ctx, img, 1)
	if err != nil {
		return Result{}, fmt.Errorf("region annotation failed: %w", err)
	}
	if len(annotations) == 0 {
		return Result{}, nil
	}

	text := strings.TrimSpace(annotations[0].Description)
	return Result{Text: text, Confidence: EstimateConfidence(text)}, nil
}

func (g *GoogleVision) annotate(ctx context.Context, img image.Image, maxResults int64) ([]*visionapi.EntityAnnotation, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image: &visionapi.Image{
				Content: base64.StdEncoding.EncodeToString(buf.Bytes()),
			},
			Features: []*visionapi.Feature{{
				Type:       "TEXT_DETECTION",
				MaxResults: maxResults,
			}},
			ImageContext: &visionapi.ImageContext{
				LanguageHints: g.hints,
			},
		}},
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := g.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("annotate request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("annotate returned error: %s", r.Error.Message)
	}
	return r.TextAnnotations, nil
}

// annotationBox converts a bounding polygon to an axis-aligned box.
func annotationBox(ann *visionapi.EntityAnnotation) (Annotation, bool) {
	if ann.BoundingPoly == nil || len(ann.BoundingPoly.Vertices) < 2 {
		return Annotation{}, false
	}

	minX, minY := int(ann.BoundingPoly.Vertices[0].X), int(ann.BoundingPoly.Vertices[0].Y)
	maxX, maxY := minX, minY
	for _, v := range ann.BoundingPoly.Vertices[1:] {
		x, y := int(v.X), int(v.Y)
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return Annotation{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
