// Package extract runs the grid extraction pipeline over a scanned
// electoral roll PDF.
//
// A run resolves the operator's grid configuration into per-cell
// rectangles, annotates every page with one cloud OCR batch call,
// extracts page-level booth fields, then fans one task per cell out to
// a bounded worker pool. Each cell walks the field strategy chain
// (embedded text layer, local OCR, cached page annotations, direct
// cloud region call), the photo path, and the Devanagari normalization
// cascade before a record is emitted. Results are merged, counted and
// sorted into vertical reading order.
//
// Key Features:
//
// - One cloud API call per page, cells answered from the cache
// - Bounded worker pool, each worker with its own document handle
// - Per-cell failures isolated as skip markers, never batch aborts
// - Method counters with a weighted accuracy estimate
//
// Main Types:
//
// - Providers: injected capability providers (PDF, OCR, cloud, names)
// - Record: one extracted voter entry
// - Stats: per-run counters and derived metrics
package extract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/votergrid/votergrid/pkg/devanagari"
	"github.com/votergrid/votergrid/pkg/grid"
	"github.com/votergrid/votergrid/pkg/ocr"
	"github.com/votergrid/votergrid/pkg/pdfdoc"
	"github.com/votergrid/votergrid/pkg/vision"
)

// Doc is the document access the pipeline needs, satisfied by
// *pdfdoc.Document. Handles are not shared: every worker opens its own
// Doc from the same raw bytes.
type Doc interface {
	PageCount() int
	PageSize(pageNumber int) (width, height float64, err error)
	TextInRegion(pageNumber int, region grid.Box) (string, error)
	RenderPage(pageNumber int, dpi float64) (image.Image, error)
	RenderRegion(pageNumber int, region grid.Box, dpi float64) (image.Image, error)
	Close() error
}

// DocumentOpener opens a Doc from raw PDF bytes.
type DocumentOpener func(data []byte) (Doc, error)

// Providers bundles the capability providers a run depends on. Only
// Open is required; every nil provider simply removes its strategy from
// the chain.
type Providers struct {
	Open      DocumentOpener             // PDF access, defaults to pdfdoc.Open
	NewEngine func() (ocr.Engine, error) // Local OCR, constructed lazily once per worker
	Pages     vision.PageAnnotator       // Cloud page-batch annotation
	Regions   vision.RegionAnnotator     // Direct cloud region call, cache-miss fallback
	Names     vision.Transliterator      // Latin rendering of Devanagari names
}

func (p Providers) withDefaults() Providers {
	if p.Open == nil {
		p.Open = func(data []byte) (Doc, error) { return pdfdoc.Open(data) }
	}
	if p.Names == nil {
		p.Names = vision.LocalTransliterator{}
	}
	return p
}

// Options control run scheduling.
type Options struct {
	Workers    int  // Worker count, defaults to the CPU count
	Sequential bool // Force single-worker execution
}

// Metadata carries per-record extraction quality details.
type Metadata struct {
	VoterIDConfidence float64 `json:"voter_id_confidence"`
	PhotoQuality      float64 `json:"photo_quality"`
	Enhanced          bool    `json:"enhanced"`
}

// Record is one extracted voter entry. Page, Column and Row are
// 1-based grid coordinates.
type Record struct {
	Page   int `json:"page"`
	Column int `json:"column"`
	Row    int `json:"row"`

	VoterID     string `json:"voterID"`
	PhotoBase64 string `json:"image_base64"`

	Name                string `json:"name"`
	NameEnglish         string `json:"nameEnglish"`
	RelativeName        string `json:"relativeName"`
	RelativeNameEnglish string `json:"relativeNameEnglish"`
	RelativeType        string `json:"relativeType"`
	HouseNumber         string `json:"houseNumber"`
	Gender              string `json:"gender"`
	Age                 string `json:"age"`
	AssemblyNumber      string `json:"assemblyNumber"`
	SerialNumber        string `json:"serialNumber"`
	BoothCenter         string `json:"boothCenter"`
	BoothAddress        string `json:"boothAddress"`

	Metadata Metadata `json:"metadata"`
}

// MethodCounts breaks total field extractions down by method.
type MethodCounts struct {
	PDFTextLayer int `json:"pdf_text_layer"`
	OCR          int `json:"ocr"`
	API          int `json:"api"`
}

// Stats summarizes one extraction run. AccuracyRate is a display
// heuristic weighting each extraction method, not a correctness
// guarantee.
type Stats struct {
	RecordsExtracted      int          `json:"records_extracted"`
	CellsProcessed        int          `json:"cells_processed"`
	CellsSkipped          int          `json:"cells_skipped"`
	ExtractionTimeSeconds float64      `json:"extraction_time_seconds"`
	AccuracyRate          float64      `json:"accuracy_rate"` // Percentage
	APICallsUsed          int          `json:"api_calls_used"`
	PDFTextLayerFields    int          `json:"pdf_text_layer_fields"`
	OCRFields             int          `json:"ocr_fields"`
	TotalFieldsExtracted  int          `json:"total_fields_extracted"`
	ExtractionMethods     MethodCounts `json:"extraction_methods"`
}

// Result is the full output of one run.
type Result struct {
	Records []Record `json:"extracted_data"`
	Stats   Stats    `json:"stats"`
}

// Accuracy weights per extraction method.
const (
	textLayerWeight = 0.99
	ocrWeight       = 0.85
	cloudWeight     = 0.95
)

// Run extracts every voter entry of the configured page range.
//
// The annotation pre-pass is strictly sequential and completes for all
// pages before any cell work starts, so a page costs exactly one cloud
// call regardless of worker count. A corrupt document is a fatal error;
// everything below the document level degrades to skipped cells or
// empty fields.
func Run(ctx context.Context, pdfData []byte, cfg *grid.ExtractionConfig, providers Providers, opts Options) (*Result, error) {
	start := time.Now()
	providers = providers.withDefaults()

	layout, err := grid.NewLayout(cfg.Grid, cfg.Template)
	if err != nil {
		return nil, err
	}

	doc, err := providers.Open(pdfData)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	firstPage := 1 + cfg.SkipPagesStart
	lastPage := doc.PageCount() - cfg.SkipPagesEnd
	if firstPage > lastPage {
		return nil, fmt.Errorf("page skips %d/%d leave no pages in a %d page document",
			cfg.SkipPagesStart, cfg.SkipPagesEnd, doc.PageCount())
	}

	annotations := annotatePages(ctx, doc, providers.Pages, firstPage, lastPage)
	booths := pageBoothFields(ctx, doc, cfg, annotations, providers.Regions, firstPage, lastPage)
	tasks := collectTasks(doc, cfg, layout, annotations, booths, firstPage, lastPage)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if opts.Sequential {
		workers = 1
	}

	results := dispatch(ctx, pdfData, layout, cfg.Template, providers, tasks, workers)

	var (
		records []Record
		counts  methodCounts
		skipped int
	)
	for _, res := range results {
		counts.merge(res.counts)
		switch {
		case res.banded:
			// Outside the extraction band; counted as processed only.
		case res.skipped:
			skipped++
			if res.err != nil {
				slog.Warn("cell skipped with error", "error", res.err)
			}
		default:
			records = append(records, res.record)
		}
	}

	// Vertical reading order: all rows of a column before the next
	// column, pages ascending.
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Row < b.Row
	})

	stats := buildStats(counts, len(records), len(tasks), skipped, time.Since(start))
	return &Result{Records: records, Stats: stats}, nil
}

func buildStats(counts methodCounts, records, cells, skipped int, elapsed time.Duration) Stats {
	totalFields := counts.textLayer + counts.localOCR + counts.cloudLookups

	accuracy := 0.0
	if totalFields > 0 {
		weighted := float64(counts.textLayer)*textLayerWeight +
			float64(counts.localOCR)*ocrWeight +
			float64(counts.cloudLookups)*cloudWeight
		accuracy = min(1.0, weighted/float64(totalFields))
	}

	return Stats{
		RecordsExtracted:      records,
		CellsProcessed:        cells,
		CellsSkipped:          skipped,
		ExtractionTimeSeconds: round2(elapsed.Seconds()),
		AccuracyRate:          round2(accuracy * 100),
		APICallsUsed:          counts.cloudLookups,
		PDFTextLayerFields:    counts.textLayer,
		OCRFields:             counts.localOCR,
		TotalFieldsExtracted:  totalFields,
		ExtractionMethods: MethodCounts{
			PDFTextLayer: counts.textLayer,
			OCR:          counts.localOCR,
			API:          counts.cloudLookups,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// cloudCall derives the bounded context every provider request runs
// under. A request that hits the deadline fails like any other provider
// error; the cell falls through to its next strategy.
func cloudCall(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, vision.CallTimeout)
}

// annotatePages runs the sequential pre-pass: render each page once at
// the fixed annotation scale and issue exactly one batch call for it.
// Failed pages are left out of the cache; their cells fall back to
// text-layer and local OCR strategies.
func annotatePages(ctx context.Context, doc Doc, annotator vision.PageAnnotator, firstPage, lastPage int) map[int]*vision.PageAnnotations {
	cache := make(map[int]*vision.PageAnnotations)
	if annotator == nil {
		return cache
	}

	for page := firstPage; page <= lastPage; page++ {
		if ctx.Err() != nil {
			break
		}
		img, err := doc.RenderPage(page, pdfdoc.BaseDPI*vision.RenderScale)
		if err != nil {
			slog.Warn("failed to render page for annotation", "page", page, "error", err)
			continue
		}
		callCtx, cancel := cloudCall(ctx)
		annotated, err := annotator.AnnotatePage(callCtx, page, img)
		cancel()
		if err != nil {
			slog.Warn("page annotation failed", "page", page, "error", err)
			continue
		}
		if annotated.Valid() {
			cache[page] = annotated
		}
	}
	return cache
}

// boothFields are the page-level values stamped onto every record of a
// page.
type boothFields struct {
	center  string
	address string
}

// pageBoothFields reads the booth center and address once per page.
// Fixed values in the config override per-page extraction entirely.
// The header template, when present, positions the boxes; otherwise the
// cell template does.
func pageBoothFields(ctx context.Context, doc Doc, cfg *grid.ExtractionConfig, cache map[int]*vision.PageAnnotations, regions vision.RegionAnnotator, firstPage, lastPage int) map[int]boothFields {
	fields := make(map[int]boothFields)

	if cfg.BoothCenter != "" || cfg.BoothAddress != "" {
		for page := firstPage; page <= lastPage; page++ {
			fields[page] = boothFields{center: cfg.BoothCenter, address: cfg.BoothAddress}
		}
		return fields
	}

	template := cfg.Template
	if cfg.HeaderTemplate != nil {
		template = *cfg.HeaderTemplate
	}
	if template.BoothCenterBox == nil && template.BoothAddressBox == nil {
		return fields
	}

	for page := firstPage; page <= lastPage; page++ {
		fields[page] = boothFields{
			center:  pageField(ctx, doc, page, template.BoothCenterBox, cfg.SkipHeaderHeight, cache[page], regions, true),
			address: pageField(ctx, doc, page, template.BoothAddressBox, cfg.SkipHeaderHeight, cache[page], regions, false),
		}
	}
	return fields
}

// pageField reads one page-level box: cached annotations first, a
// direct region call when no cache exists, and optionally the text
// layer. The booth address stays cloud-only because its text layer is
// unreliable on these rolls.
func pageField(ctx context.Context, doc Doc, page int, box *grid.Box, headerOffset float64, cache *vision.PageAnnotations, regions vision.RegionAnnotator, textLayerFallback bool) string {
	if box == nil {
		return ""
	}
	region := box.Translate(0, headerOffset)

	if cache.Valid() {
		if text, _ := cache.QueryRegion(region.X, region.Y, region.Width, region.Height); text != "" {
			return devanagari.CorrectText(collapseSpaces(text))
		}
	} else if regions != nil {
		if img, err := doc.RenderRegion(page, region, 300); err == nil {
			callCtx, cancel := cloudCall(ctx)
			defer cancel()
			if res, err := regions.AnnotateRegion(callCtx, img); err == nil {
				if text := strings.TrimSpace(res.Text); text != "" {
					return devanagari.CorrectText(text)
				}
			}
		}
	}

	if textLayerFallback {
		if text, err := doc.TextInRegion(page, region); err == nil {
			return collapseSpaces(text)
		}
	}
	return ""
}

// cellTask is one self-contained unit of work: a single grid cell on a
// single page, with the read-only caches it may consult.
type cellTask struct {
	page     int // 1-based
	row, col int // 0-based

	// Vertical extraction band in page coordinates. Cells outside it
	// are dropped whole, never partially extracted.
	bandTop, bandBottom float64

	annotations *vision.PageAnnotations
	booth       boothFields
}

func collectTasks(doc Doc, cfg *grid.ExtractionConfig, layout *grid.Layout, annotations map[int]*vision.PageAnnotations, booths map[int]boothFields, firstPage, lastPage int) []cellTask {
	var tasks []cellTask
	for page := firstPage; page <= lastPage; page++ {
		bandBottom := math.Inf(1)
		if _, pageHeight, err := doc.PageSize(page); err == nil {
			bandBottom = pageHeight - cfg.SkipFooterHeight
		}

		for col := 0; col < layout.Grid.Columns; col++ {
			for row := 0; row < layout.Grid.Rows; row++ {
				tasks = append(tasks, cellTask{
					page:        page,
					row:         row,
					col:         col,
					bandTop:     cfg.SkipHeaderHeight,
					bandBottom:  bandBottom,
					annotations: annotations[page],
					booth:       booths[page],
				})
			}
		}
	}
	return tasks
}

// dispatch fans tasks out to the worker pool and collects results in
// submission order. Each worker holds its own document handle and lazy
// OCR engine; only the read-only caches inside the tasks are shared.
func dispatch(ctx context.Context, pdfData []byte, layout *grid.Layout, template grid.CellTemplate, providers Providers, tasks []cellTask, workers int) []cellResult {
	results := make([]cellResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	if workers <= 1 {
		w := newWorker(pdfData, layout, template, providers)
		defer w.close()
		for i := range tasks {
			results[i] = w.processCell(ctx, tasks[i])
		}
		return results
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := newWorker(pdfData, layout, template, providers)
			defer w.close()
			for i := range indices {
				results[i] = w.processCell(ctx, tasks[i])
			}
		}()
	}
	for i := range tasks {
		indices <- i
	}
	close(indices)
	wg.Wait()
	return results
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
