package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"
)

// DocumentAIConfig identifies the Document AI processor to run pages
// through.
type DocumentAIConfig struct {
	ProjectID   string `yaml:"project_id" json:"project_id"`
	Location    string `yaml:"location" json:"location"`
	ProcessorID string `yaml:"processor_id" json:"processor_id"`
	Credentials string `yaml:"credentials" json:"credentials"` // Service account key file
}

// Validate checks that the processor is fully identified.
func (c *DocumentAIConfig) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("document AI project ID is required")
	}
	if c.Location == "" {
		return fmt.Errorf("document AI location is required")
	}
	if c.ProcessorID == "" {
		return fmt.Errorf("document AI processor ID is required")
	}
	return nil
}

// DocumentAI annotates page images with a Google Document AI OCR
// processor. It is the alternative PageAnnotator for deployments that
// already run Document AI; word tokens map to the same cached
// annotation shape the Vision provider produces.
type DocumentAI struct {
	client *documentai.DocumentProcessorClient
	name   string
	debug  io.Writer
}

// NewDocumentAI connects to the regional Document AI endpoint and
// resolves the processor resource name.
func NewDocumentAI(ctx context.Context, cfg DocumentAIConfig) (*DocumentAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}

	return &DocumentAI{
		client: client,
		name: fmt.Sprintf("projects/%s/locations/%s/processors/%s",
			cfg.ProjectID, cfg.Location, cfg.ProcessorID),
	}, nil
}

// Close releases the underlying gRPC connection.
func (d *DocumentAI) Close() error {
	return d.client.Close()
}

// SetDebugWriter streams every raw processor response to w as indented
// JSON. Set it before the first request; the writer is not guarded
// against concurrent reconfiguration.
func (d *DocumentAI) SetDebugWriter(w io.Writer) {
	d.debug = w
}

func (d *DocumentAI) dumpDebug(doc *documentaipb.Document) {
	if d.debug == nil {
		return
	}
	dump, err := DocumentToJSON(doc)
	if err != nil {
		return
	}
	fmt.Fprintln(d.debug, dump)
}

// AnnotatePage runs one rendered page through the processor and converts
// its word tokens into cached annotations.
func (d *DocumentAI) AnnotatePage(ctx context.Context, pageNumber int, img image.Image) (*PageAnnotations, error) {
	doc, err := d.process(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("page %d annotation failed: %w", pageNumber, err)
	}

	bounds := img.Bounds()
	page := &PageAnnotations{
		PageNumber:  pageNumber,
		ImageWidth:  bounds.Dx(),
		ImageHeight: bounds.Dy(),
		FullText:    doc.GetText(),
	}

	for _, docPage := range doc.GetPages() {
		for _, token := range docPage.GetTokens() {
			text := strings.TrimSpace(layoutText(doc.GetText(), token.GetLayout()))
			if text == "" {
				continue
			}
			box, ok := tokenBox(token.GetLayout(), bounds.Dx(), bounds.Dy())
			if !ok {
				continue
			}
			box.Text = text
			page.Annotations = append(page.Annotations, box)
		}
	}
	return page, nil
}

// AnnotateRegion runs text detection on a single cropped region.
func (d *DocumentAI) AnnotateRegion(ctx context.Context, img image.Image) (Result, error) {
	doc, err := d.process(ctx, img)
	if err != nil {
		return Result{}, fmt.Errorf("region annotation failed: %w", err)
	}

	text := strings.TrimSpace(doc.GetText())
	if text == "" {
		return Result{}, nil
	}
	return Result{Text: text, Confidence: EstimateConfidence(text)}, nil
}

func (d *DocumentAI) process(ctx context.Context, img image.Image) (*documentaipb.Document, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	req := &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  buf.Bytes(),
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	doc := resp.GetDocument()
	d.dumpDebug(doc)
	return doc, nil
}

// layoutText resolves a layout's text anchor against the document text.
func layoutText(docText string, layout *documentaipb.Document_Page_Layout) string {
	anchor := layout.GetTextAnchor()
	if anchor == nil {
		return ""
	}

	var b strings.Builder
	for _, segment := range anchor.GetTextSegments() {
		start := int(segment.GetStartIndex())
		end := int(segment.GetEndIndex())
		if start < 0 || end > len(docText) || start >= end {
			continue
		}
		b.WriteString(docText[start:end])
	}
	return b.String()
}

// tokenBox converts a layout bounding polygon to pixel coordinates.
// Document AI returns normalized vertices in [0,1]; plain vertices are
// already in pixels.
func tokenBox(layout *documentaipb.Document_Page_Layout, imgWidth, imgHeight int) (Annotation, bool) {
	poly := layout.GetBoundingPoly()
	if poly == nil {
		return Annotation{}, false
	}

	type point struct{ x, y float64 }
	var points []point
	if normalized := poly.GetNormalizedVertices(); len(normalized) >= 2 {
		for _, v := range normalized {
			points = append(points, point{
				x: float64(v.GetX()) * float64(imgWidth),
				y: float64(v.GetY()) * float64(imgHeight),
			})
		}
	} else if vertices := poly.GetVertices(); len(vertices) >= 2 {
		for _, v := range vertices {
			points = append(points, point{x: float64(v.GetX()), y: float64(v.GetY())})
		}
	} else {
		return Annotation{}, false
	}

	minX, minY := points[0].x, points[0].y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.x < minX {
			minX = p.x
		}
		if p.x > maxX {
			maxX = p.x
		}
		if p.y < minY {
			minY = p.y
		}
		if p.y > maxY {
			maxY = p.y
		}
	}
	return Annotation{
		X:      int(minX),
		Y:      int(minY),
		Width:  int(maxX - minX),
		Height: int(maxY - minY),
	}, true
}

// DocumentToJSON renders a raw Document AI response as indented JSON.
func DocumentToJSON(doc *documentaipb.Document) (string, error) {
	opts := protojson.MarshalOptions{Indent: "  "}
	data, err := opts.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	return string(data), nil
}
