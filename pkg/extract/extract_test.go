package extract

import (
	"context"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votergrid/votergrid/pkg/grid"
	"github.com/votergrid/votergrid/pkg/ocr"
	"github.com/votergrid/votergrid/pkg/vision"
)

// fragment is one positioned text snippet in the fake document's text
// layer.
type fragment struct {
	page int
	x, y float64
	text string
}

type fakeDoc struct {
	pages         int
	width, height float64
	fragments     []fragment
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) PageSize(int) (float64, float64, error) {
	return d.width, d.height, nil
}

func (d *fakeDoc) TextInRegion(page int, region grid.Box) (string, error) {
	var parts []string
	for _, f := range d.fragments {
		if f.page == page &&
			f.x >= region.X && f.x <= region.MaxX() &&
			f.y >= region.Y && f.y <= region.MaxY() {
			parts = append(parts, f.text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (d *fakeDoc) RenderPage(int, float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 16, 16)), nil
}

func (d *fakeDoc) RenderRegion(int, grid.Box, float64) (image.Image, error) {
	// Uniform crop, so the photo path scores it as blank.
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (d *fakeDoc) Close() error { return nil }

func openerFor(d *fakeDoc) DocumentOpener {
	return func([]byte) (Doc, error) { return d, nil }
}

// countingAnnotator records how often each page is annotated.
type countingAnnotator struct {
	calls       map[int]int
	annotations map[int][]vision.Annotation
}

func (c *countingAnnotator) AnnotatePage(_ context.Context, pageNumber int, _ image.Image) (*vision.PageAnnotations, error) {
	if c.calls == nil {
		c.calls = make(map[int]int)
	}
	c.calls[pageNumber]++
	return &vision.PageAnnotations{
		PageNumber:  pageNumber,
		ImageWidth:  1000,
		ImageHeight: 1000,
		Annotations: c.annotations[pageNumber],
	}, nil
}

type fakeEngine struct {
	text   string
	closed bool
}

func (e *fakeEngine) Recognize(image.Image) (ocr.Result, error) {
	return ocr.Result{Text: e.text, Confidence: 0.85}, nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

// twoByOneConfig is a 1-column, 2-row uniform grid filling a 200x200
// area, with an ID box in the top-left of each cell.
func twoByOneConfig() *grid.ExtractionConfig {
	return &grid.ExtractionConfig{
		Grid: grid.GridConfig{
			X: 0, Y: 0, Width: 200, Height: 200,
			Rows: 2, Columns: 1,
		},
		Template: grid.CellTemplate{
			VoterIDBox: &grid.Box{X: 10, Y: 10, Width: 100, Height: 20},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	doc := &fakeDoc{
		pages: 1, width: 200, height: 200,
		fragments: []fragment{
			{page: 1, x: 20, y: 15, text: "ABC1234567"},
		},
	}

	result, err := Run(context.Background(), []byte("%PDF"), twoByOneConfig(),
		Providers{Open: openerFor(doc)}, Options{Sequential: true})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, "ABC1234567", rec.VoterID)
	assert.Equal(t, 1, rec.Page)
	assert.Equal(t, 1, rec.Column)
	assert.Equal(t, 1, rec.Row)
	assert.Equal(t, 0.99, rec.Metadata.VoterIDConfidence)
	assert.Empty(t, rec.PhotoBase64)

	assert.Equal(t, 2, result.Stats.CellsProcessed)
	assert.Equal(t, 1, result.Stats.CellsSkipped)
	assert.Equal(t, 1, result.Stats.RecordsExtracted)
	assert.Equal(t, 1, result.Stats.PDFTextLayerFields)
	assert.Equal(t, 1, result.Stats.TotalFieldsExtracted)
	assert.Equal(t, 99.0, result.Stats.AccuracyRate)
}

func TestRunAnnotatesEachPageExactlyOnce(t *testing.T) {
	doc := &fakeDoc{pages: 2, width: 200, height: 200}
	annotator := &countingAnnotator{
		annotations: map[int][]vision.Annotation{
			1: {{Text: "x", X: 0, Y: 0, Width: 5, Height: 5}},
			2: {{Text: "x", X: 0, Y: 0, Width: 5, Height: 5}},
		},
	}

	cfg := twoByOneConfig()
	_, err := Run(context.Background(), []byte("%PDF"), cfg,
		Providers{Open: openerFor(doc), Pages: annotator}, Options{Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, 1, annotator.calls[1])
	assert.Equal(t, 1, annotator.calls[2])
	assert.Len(t, annotator.calls, 2)
}

// deadlineAnnotator records the context deadline it is called with.
type deadlineAnnotator struct {
	hasDeadline bool
	remaining   time.Duration
}

func (d *deadlineAnnotator) AnnotatePage(ctx context.Context, pageNumber int, _ image.Image) (*vision.PageAnnotations, error) {
	if deadline, ok := ctx.Deadline(); ok {
		d.hasDeadline = true
		d.remaining = time.Until(deadline)
	}
	return &vision.PageAnnotations{PageNumber: pageNumber}, nil
}

func TestCloudCallsCarryFixedDeadline(t *testing.T) {
	doc := &fakeDoc{pages: 1, width: 200, height: 200}
	ann := &deadlineAnnotator{}

	_, err := Run(context.Background(), []byte("%PDF"), twoByOneConfig(),
		Providers{Open: openerFor(doc), Pages: ann}, Options{Sequential: true})
	require.NoError(t, err)

	require.True(t, ann.hasDeadline, "annotation calls must carry a deadline")
	assert.LessOrEqual(t, ann.remaining, vision.CallTimeout)
	assert.Greater(t, ann.remaining, vision.CallTimeout/2)
}

func TestRunOrdersRecordsVertically(t *testing.T) {
	cfg := &grid.ExtractionConfig{
		Grid: grid.GridConfig{
			X: 0, Y: 0, Width: 200, Height: 200,
			Rows: 2, Columns: 2,
		},
		Template: grid.CellTemplate{
			VoterIDBox: &grid.Box{X: 10, Y: 10, Width: 80, Height: 20},
		},
	}

	prefixes := []string{"AAA", "AAB", "AAC", "AAD", "AAE", "AAF", "AAG", "AAH"}
	doc := &fakeDoc{pages: 2, width: 200, height: 200}
	var want []string
	i := 0
	for page := 1; page <= 2; page++ {
		for col := 0; col < 2; col++ {
			for row := 0; row < 2; row++ {
				id := prefixes[i] + "1234567"
				doc.fragments = append(doc.fragments, fragment{
					page: page,
					x:    float64(col*100 + 20),
					y:    float64(row*100 + 15),
					text: id,
				})
				want = append(want, id)
				i++
			}
		}
	}

	result, err := Run(context.Background(), []byte("%PDF"), cfg,
		Providers{Open: openerFor(doc)}, Options{Workers: 4})
	require.NoError(t, err)
	require.Len(t, result.Records, 8)

	var got []string
	for k, rec := range result.Records {
		got = append(got, rec.VoterID)
		if k > 0 {
			prev := result.Records[k-1]
			ordered := prev.Page < rec.Page ||
				(prev.Page == rec.Page && prev.Column < rec.Column) ||
				(prev.Page == rec.Page && prev.Column == rec.Column && prev.Row < rec.Row)
			assert.True(t, ordered, "records %d and %d out of order", k-1, k)
		}
	}
	assert.Equal(t, want, got)
}

func TestRunSkipsCellsWithoutValidID(t *testing.T) {
	doc := &fakeDoc{
		pages: 1, width: 200, height: 200,
		fragments: []fragment{
			{page: 1, x: 20, y: 15, text: "N/A"},
			{page: 1, x: 20, y: 115, text: "XYZ0000001"},
		},
	}

	result, err := Run(context.Background(), []byte("%PDF"), twoByOneConfig(),
		Providers{Open: openerFor(doc)}, Options{Sequential: true})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "XYZ0000001", result.Records[0].VoterID)
	assert.Equal(t, 2, result.Records[0].Row)
	assert.Equal(t, 1, result.Stats.CellsSkipped)
}

func TestRunBandExcludesCellsWhole(t *testing.T) {
	doc := &fakeDoc{
		pages: 1, width: 200, height: 200,
		fragments: []fragment{
			{page: 1, x: 20, y: 15, text: "ABC1234567"},
			{page: 1, x: 20, y: 115, text: "ABD1234567"},
		},
	}

	cfg := twoByOneConfig()
	cfg.SkipHeaderHeight = 50 // Row 0 starts above the band.

	result, err := Run(context.Background(), []byte("%PDF"), cfg,
		Providers{Open: openerFor(doc)}, Options{Sequential: true})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "ABD1234567", result.Records[0].VoterID)
	// Band exclusions are processed cells but not skips.
	assert.Equal(t, 2, result.Stats.CellsProcessed)
	assert.Equal(t, 0, result.Stats.CellsSkipped)
}

func TestRunPrefersCloudOverLocalOCRForNames(t *testing.T) {
	cfg := twoByOneConfig()
	cfg.Template.NameBox = &grid.Box{X: 10, Y: 40, Width: 100, Height: 20}

	doc := &fakeDoc{
		pages: 1, width: 200, height: 200,
		fragments: []fragment{
			{page: 1, x: 20, y: 15, text: "ABC1234567"},
			{page: 1, x: 20, y: 115, text: "ABD1234567"},
		},
	}
	// The name region of cell (0,0) is (10,40)-(110,60) in points, so
	// (20,80)-(220,120) in the 2x annotation space.
	annotator := &countingAnnotator{
		annotations: map[int][]vision.Annotation{
			1: {{Text: "राम कुमार", X: 30, Y: 90, Width: 60, Height: 20}},
		},
	}
	engine := &fakeEngine{text: "XXX"}

	result, err := Run(context.Background(), []byte("%PDF"), cfg,
		Providers{
			Open:      openerFor(doc),
			Pages:     annotator,
			NewEngine: func() (ocr.Engine, error) { return engine, nil },
		},
		Options{Sequential: true})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	first := result.Records[0]
	assert.Equal(t, "राम कुमार", first.Name)
	assert.Equal(t, "Raama Kumaara", first.NameEnglish)

	// Cell (1,0) has no annotation over its name region; the local OCR
	// text is the fallback there, and the Latin junk it produced is
	// scrubbed by the name cascade while its transliteration remains.
	assert.Equal(t, "", result.Records[1].Name)
	assert.Equal(t, "Xxx", result.Records[1].NameEnglish)

	assert.Equal(t, 2, result.Stats.OCRFields)
	assert.Equal(t, 1, result.Stats.APICallsUsed)
	assert.True(t, engine.closed)
}

func TestRunStampsBoothFieldsOnEveryRecord(t *testing.T) {
	doc := &fakeDoc{
		pages: 1, width: 200, height: 200,
		fragments: []fragment{
			{page: 1, x: 20, y: 15, text: "ABC1234567"},
		},
	}

	cfg := twoByOneConfig()
	cfg.BoothCenter = "Zilla Parishad School"
	cfg.BoothAddress = "Ward 4, Main Road"

	result, err := Run(context.Background(), []byte("%PDF"), cfg,
		Providers{Open: openerFor(doc)}, Options{Sequential: true})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "Zilla Parishad School", result.Records[0].BoothCenter)
	assert.Equal(t, "Ward 4, Main Road", result.Records[0].BoothAddress)
}

func TestRunRejectsEmptyPageRange(t *testing.T) {
	doc := &fakeDoc{pages: 2, width: 200, height: 200}
	cfg := twoByOneConfig()
	cfg.SkipPagesStart = 1
	cfg.SkipPagesEnd = 1

	_, err := Run(context.Background(), []byte("%PDF"), cfg,
		Providers{Open: openerFor(doc)}, Options{Sequential: true})
	assert.Error(t, err)
}

func TestBuildStatsWeightedAccuracy(t *testing.T) {
	stats := buildStats(methodCounts{textLayer: 2, localOCR: 1, cloudLookups: 1}, 3, 4, 1, 0)
	// (2*0.99 + 1*0.85 + 1*0.95) / 4 = 0.945
	assert.Equal(t, 94.5, stats.AccuracyRate)
	assert.Equal(t, 4, stats.TotalFieldsExtracted)
	assert.Equal(t, 2, stats.PDFTextLayerFields)
	assert.Equal(t, 1, stats.OCRFields)
	assert.Equal(t, 1, stats.APICallsUsed)

	empty := buildStats(methodCounts{}, 0, 0, 0, 0)
	assert.Equal(t, 0.0, empty.AccuracyRate)
}

func TestBuildStatsUsesAllCounters(t *testing.T) {
	var m methodCounts
	m.merge(methodCounts{textLayer: 1, localOCR: 2, cloudLookups: 3, photos: 4, photosEnhanced: 5})
	m.merge(methodCounts{textLayer: 1})
	assert.Equal(t, 2, m.textLayer)
	assert.Equal(t, 2, m.localOCR)
	assert.Equal(t, 3, m.cloudLookups)
	assert.Equal(t, 4, m.photos)
	assert.Equal(t, 5, m.photosEnhanced)
}
