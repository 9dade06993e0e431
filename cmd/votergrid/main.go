// votergrid is a command-line tool for extracting voter records from
// scanned electoral roll PDFs using a grid calibration.
//
// The tool reads a roll PDF and a JSON calibration file describing the
// entry grid on each page, extracts one record per grid cell, and
// writes the results as JSON and optionally as an Excel workbook. A
// calibration preview PDF can be rendered to check the grid against
// the scan before running a full extraction.
//
// Configuration:
//
// Cloud providers are wired through an optional YAML credentials file:
//
//	vision:
//	  provider: "google"          # google | documentai | none
//	  credentials: "/path/to/service-account.json"
//	  language_hints: ["hi", "en"]
//	documentai:
//	  project_id: "your-gcp-project-id"
//	  location: "us"
//	  processor_id: "your-processor-id"
//	translate:
//	  api_key: "your-translate-api-key"
//	local_ocr: true
//
// Without the file the extraction runs on the PDF text layer and local
// OCR alone.
//
// Usage:
//
//	votergrid -pdf roll.pdf -config calibration.json [options]
//
// Required flags:
//
//	-pdf string     Path to the input roll PDF
//	-config string  Path to the JSON calibration file
//
// Output options (at least one required):
//
//	-out string      Path to save extracted records as JSON ("-" for stdout)
//	-xlsx string     Path to save the Excel workbook
//	-preview string  Path to save a calibration preview PDF
//	-hocr string     Path to save cloud page annotations as hOCR
//	-detect string   Path to save a detected grid calibration ("-" for stdout)
//
// Processing options:
//
//	-preview-page int  Page to render in the preview and detection (default 1)
//	-workers int       Concurrent cell workers (default: number of CPUs)
//	-sequential        Process cells one at a time
//	-debug-api         Dump raw Document AI responses to stderr
//
// Detection renders the page, finds the printed cell boxes and writes a
// calibration starting point; -config is not needed for it.
//
// Example:
//
//	votergrid -pdf roll.pdf -config calibration.json -providers providers.yml -out records.json -xlsx records.xlsx
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/votergrid/votergrid/pkg/boxdetect"
	"github.com/votergrid/votergrid/pkg/extract"
	"github.com/votergrid/votergrid/pkg/grid"
	"github.com/votergrid/votergrid/pkg/pdfdoc"
	"github.com/votergrid/votergrid/pkg/preview"
	"github.com/votergrid/votergrid/pkg/report"
	"github.com/votergrid/votergrid/pkg/vision"
)

// detectDPI matches the render density the detection defaults are
// tuned for.
const detectDPI = 200.0

func main() {
	pdfPath := flag.String("pdf", "", "Path to the input roll PDF (required)")
	configPath := flag.String("config", "", "Path to the JSON calibration file (required)")
	providersPath := flag.String("providers", "", "Path to the YAML cloud providers file")

	outPath := flag.String("out", "", "Path to save extracted records as JSON, - for stdout")
	xlsxPath := flag.String("xlsx", "", "Path to save the Excel workbook")
	previewPath := flag.String("preview", "", "Path to save a calibration preview PDF")
	hocrPath := flag.String("hocr", "", "Path to save cloud page annotations as hOCR")
	detectPath := flag.String("detect", "", "Path to save a detected grid calibration, - for stdout")

	previewPage := flag.Int("preview-page", 1, "Page to render in the preview and detection")
	workers := flag.Int("workers", 0, "Concurrent cell workers, 0 for the number of CPUs")
	sequential := flag.Bool("sequential", false, "Process cells one at a time")
	debugAPI := flag.Bool("debug-api", false, "Dump raw Document AI responses to stderr")
	flag.Parse()

	if *pdfPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -pdf flag is required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *outPath == "" && *xlsxPath == "" && *previewPath == "" && *hocrPath == "" && *detectPath == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one of -out, -xlsx, -preview, -hocr or -detect is required")
		os.Exit(1)
	}
	needsConfig := *outPath != "" || *xlsxPath != "" || *previewPath != "" || *hocrPath != ""
	if needsConfig && *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required for everything except -detect")
		os.Exit(1)
	}

	pdfData, err := os.ReadFile(*pdfPath)
	if err != nil {
		fail(fmt.Errorf("reading PDF: %w", err))
	}

	if *detectPath != "" {
		if err := writeDetectedGrid(pdfData, *previewPage, *detectPath); err != nil {
			fail(err)
		}
		if *detectPath != "-" {
			fmt.Printf("Detected calibration saved to %s\n", *detectPath)
		}
	}
	if !needsConfig {
		return
	}

	cfg, err := grid.LoadExtractionConfig(*configPath)
	if err != nil {
		fail(err)
	}

	ctx := context.Background()

	var providers extract.Providers
	if *providersPath != "" {
		pc, err := extract.LoadProvidersConfig(*providersPath)
		if err != nil {
			fail(err)
		}
		var closeAll func()
		providers, closeAll, err = pc.Build(ctx)
		if err != nil {
			fail(err)
		}
		defer closeAll()

		if *debugAPI {
			if d, ok := providers.Pages.(*vision.DocumentAI); ok {
				d.SetDebugWriter(os.Stderr)
			} else {
				fmt.Fprintln(os.Stderr, "Warning: -debug-api only applies to the documentai provider")
			}
		}
	}

	if *previewPath != "" {
		if err := writePreview(pdfData, cfg, *previewPage, *previewPath); err != nil {
			fail(err)
		}
		fmt.Printf("Preview saved to %s\n", *previewPath)
	}

	if *hocrPath != "" {
		if err := writeHOCR(ctx, pdfData, cfg, providers, *hocrPath); err != nil {
			fail(err)
		}
		fmt.Printf("Annotations saved to %s\n", *hocrPath)
	}

	if *outPath == "" && *xlsxPath == "" {
		return
	}

	fmt.Printf("Extracting %s with %s\n", *pdfPath, *configPath)
	result, err := extract.Run(ctx, pdfData, cfg, providers, extract.Options{
		Workers:    *workers,
		Sequential: *sequential,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Extracted %d records from %d cells in %.2fs (accuracy %.2f%%)\n",
		result.Stats.RecordsExtracted,
		result.Stats.CellsProcessed,
		result.Stats.ExtractionTimeSeconds,
		result.Stats.AccuracyRate)

	if *outPath != "" {
		if err := writeJSONResult(result, *outPath); err != nil {
			fail(err)
		}
		if *outPath != "-" {
			fmt.Printf("Records saved to %s\n", *outPath)
		}
	}
	if *xlsxPath != "" {
		if err := report.Save(*xlsxPath, result.Records); err != nil {
			fail(err)
		}
		fmt.Printf("Workbook saved to %s\n", *xlsxPath)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func writeJSONResult(result *extract.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeDetectedGrid locates the printed cell boxes on one page and
// writes the inferred grid as a calibration starting point. Box
// positions come back in render pixels and are scaled to PDF points.
func writeDetectedGrid(pdfData []byte, page int, path string) error {
	doc, err := pdfdoc.Open(pdfData)
	if err != nil {
		return err
	}
	defer doc.Close()

	img, err := doc.RenderPage(page, detectDPI)
	if err != nil {
		return fmt.Errorf("rendering page %d: %w", page, err)
	}

	boxes := boxdetect.DetectBoxes(img, boxdetect.DefaultParams())
	detected, ok := boxdetect.InferGrid(boxes, boxdetect.DefaultParams().GridTolerance)
	if !ok {
		return fmt.Errorf("no cell grid detected on page %d (%d boxes found)", page, len(boxes))
	}
	fmt.Printf("Detected %d boxes forming a %dx%d grid on page %d\n",
		len(boxes), detected.Rows, detected.Columns, page)

	scale := pdfdoc.BaseDPI / detectDPI
	detected.X *= scale
	detected.Y *= scale
	detected.Width *= scale
	detected.Height *= scale
	for i := range detected.ColPos {
		detected.ColPos[i] *= scale
	}
	for i := range detected.RowPos {
		detected.RowPos[i] *= scale
	}

	cfg := grid.ExtractionConfig{Grid: detected}
	data, err := json.MarshalIndent(&cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding calibration: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writePreview(pdfData []byte, cfg *grid.ExtractionConfig, page int, path string) error {
	doc, err := pdfdoc.Open(pdfData)
	if err != nil {
		return err
	}
	defer doc.Close()

	rendered, err := preview.Render(doc, page, cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, rendered, 0o644)
}

// writeHOCR renders each in-range page at the annotation scale, runs
// the cloud annotator over it and dumps the word boxes as hOCR.
func writeHOCR(ctx context.Context, pdfData []byte, cfg *grid.ExtractionConfig, providers extract.Providers, path string) error {
	if providers.Pages == nil {
		return fmt.Errorf("-hocr requires a vision provider in the providers file")
	}

	doc, err := pdfdoc.Open(pdfData)
	if err != nil {
		return err
	}
	defer doc.Close()

	firstPage := 1 + cfg.SkipPagesStart
	lastPage := doc.PageCount() - cfg.SkipPagesEnd
	if firstPage > lastPage {
		return fmt.Errorf("page skips leave no pages to annotate")
	}

	var pages []*vision.PageAnnotations
	for page := firstPage; page <= lastPage; page++ {
		img, err := doc.RenderPage(page, pdfdoc.BaseDPI*vision.RenderScale)
		if err != nil {
			return fmt.Errorf("rendering page %d: %w", page, err)
		}
		annotations, err := providers.Pages.AnnotatePage(ctx, page, img)
		if err != nil {
			return fmt.Errorf("annotating page %d: %w", page, err)
		}
		pages = append(pages, annotations)
		fmt.Printf("Annotated page %d/%d\n", page, lastPage)
	}

	out, err := vision.ExportHOCR(fmt.Sprintf("votergrid annotations (%d pages)", len(pages)), pages)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0o644)
}
