package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/votergrid/votergrid/pkg/devanagari"
	"github.com/votergrid/votergrid/pkg/epic"
	"github.com/votergrid/votergrid/pkg/grid"
	"github.com/votergrid/votergrid/pkg/ocr"
	"github.com/votergrid/votergrid/pkg/photo"
)

// methodCounts accumulates per-method extraction counters across cells.
type methodCounts struct {
	textLayer      int
	localOCR       int
	cloudLookups   int
	photos         int
	photosEnhanced int
}

func (m *methodCounts) merge(o methodCounts) {
	m.textLayer += o.textLayer
	m.localOCR += o.localOCR
	m.cloudLookups += o.cloudLookups
	m.photos += o.photos
	m.photosEnhanced += o.photosEnhanced
}

// cellResult is the outcome of one cell task: a record, a skip marker,
// or a band exclusion, always with the counters the attempt produced.
type cellResult struct {
	record  Record
	skipped bool
	banded  bool
	err     error
	counts  methodCounts
}

// worker is the per-goroutine execution environment. The document
// handle and the OCR engine hold native state, so neither is shared
// between workers.
type worker struct {
	layout    *grid.Layout
	template  grid.CellTemplate
	providers Providers

	doc     Doc
	openErr error

	engine      ocr.Engine
	engineTried bool
}

func newWorker(pdfData []byte, layout *grid.Layout, template grid.CellTemplate, providers Providers) *worker {
	w := &worker{layout: layout, template: template, providers: providers}
	doc, err := providers.Open(pdfData)
	if err != nil {
		w.openErr = fmt.Errorf("worker failed to open PDF: %w", err)
		return w
	}
	w.doc = doc
	return w
}

func (w *worker) close() {
	if w.engine != nil {
		if err := w.engine.Close(); err != nil {
			slog.Warn("failed to close OCR engine", "error", err)
		}
	}
	if w.doc != nil {
		if err := w.doc.Close(); err != nil {
			slog.Warn("failed to close document", "error", err)
		}
	}
}

// localEngine constructs the OCR engine on first use and reuses it for
// every later task of this worker. Construction failure disables the
// local OCR strategy for the worker, nothing else.
func (w *worker) localEngine() ocr.Engine {
	if !w.engineTried {
		w.engineTried = true
		if w.providers.NewEngine != nil {
			engine, err := w.providers.NewEngine()
			if err != nil {
				slog.Warn("local OCR engine unavailable", "error", err)
			} else {
				w.engine = engine
			}
		}
	}
	return w.engine
}

// cloudAvailable reports whether any cloud strategy can serve the task.
func (w *worker) cloudAvailable(task cellTask) bool {
	return task.annotations.Valid() || w.providers.Regions != nil
}

// processCell runs the full extraction chain for one cell. A panic
// anywhere inside becomes a skip marker so one bad cell never takes
// the batch down.
func (w *worker) processCell(ctx context.Context, task cellTask) (res cellResult) {
	counts := &methodCounts{}
	defer func() {
		if r := recover(); r != nil {
			res = cellResult{
				skipped: true,
				counts:  *counts,
				err:     fmt.Errorf("cell [%d,%d] on page %d panicked: %v", task.row+1, task.col+1, task.page, r),
			}
		}
	}()

	if w.openErr != nil {
		return cellResult{skipped: true, err: w.openErr}
	}

	cell := w.layout.CellRect(task.row, task.col)
	if cell.Y < task.bandTop || cell.MaxY() > task.bandBottom {
		return cellResult{banded: true}
	}

	voterID, idConfidence := w.extractVoterID(task, counts)
	cellPhoto := w.extractPhoto(task, counts)

	name := w.fieldText(ctx, task, w.template.NameBox, false, counts)
	relativeName := w.fieldText(ctx, task, w.template.RelativeNameBox, false, counts)
	houseNumber := w.fieldText(ctx, task, w.template.HouseNumberBox, true, counts)
	gender := w.fieldText(ctx, task, w.template.GenderBox, true, counts)
	age := w.fieldText(ctx, task, w.template.AgeBox, true, counts)
	assemblyNumber := w.fieldText(ctx, task, w.template.AssemblyNumberBox, true, counts)
	serialNumber := w.fieldText(ctx, task, w.template.SerialNumberBox, true, counts)

	// Latin renderings come from the raw names; the correction cascade
	// below only stabilizes the Devanagari spelling.
	nameEnglish := w.transliterate(ctx, name)
	relativeNameEnglish := w.transliterate(ctx, relativeName)
	if _, after, found := strings.Cut(relativeNameEnglish, ":"); found {
		relativeNameEnglish = strings.TrimSpace(after)
	}

	if name != "" {
		name = devanagari.StripRelativePrefixes(devanagari.CorrectName(name))
	}
	if relativeName != "" {
		relativeName = devanagari.CorrectName(relativeName)
	}
	relativeType, relativeName := devanagari.ExtractRelativeType(relativeName)
	if houseNumber != "" {
		houseNumber = devanagari.CleanHouseNumber(devanagari.CorrectText(houseNumber))
	}
	if gender != "" {
		gender = devanagari.NormalizeGender(gender)
	}
	if age != "" {
		age = devanagari.CleanAge(age)
	}
	if assemblyNumber != "" {
		assemblyNumber = devanagari.CleanAssemblyNumber(assemblyNumber)
	}
	if serialNumber != "" {
		serialNumber = devanagari.CleanSerialNumber(serialNumber)
	}

	if voterID != "" {
		voterID = epic.Correct(voterID)
		if !epic.Validate(voterID) {
			if m := epic.Extract(voterID); m != "" {
				voterID = m
			}
		}
	}

	switch {
	case strings.TrimSpace(voterID) == "", epic.IsSentinel(voterID):
		return cellResult{skipped: true, counts: *counts}
	case idConfidence <= 0 && cellPhoto.Base64 == "":
		return cellResult{skipped: true, counts: *counts}
	}

	return cellResult{
		counts: *counts,
		record: Record{
			Page:                task.page,
			Column:              task.col + 1,
			Row:                 task.row + 1,
			VoterID:             voterID,
			PhotoBase64:         cellPhoto.Base64,
			Name:                name,
			NameEnglish:         nameEnglish,
			RelativeName:        relativeName,
			RelativeNameEnglish: relativeNameEnglish,
			RelativeType:        relativeType,
			HouseNumber:         houseNumber,
			Gender:              gender,
			Age:                 age,
			AssemblyNumber:      assemblyNumber,
			SerialNumber:        serialNumber,
			BoothCenter:         task.booth.center,
			BoothAddress:        task.booth.address,
			Metadata: Metadata{
				VoterIDConfidence: idConfidence,
				PhotoQuality:      cellPhoto.Confidence,
				Enhanced:          cellPhoto.Enhanced,
			},
		},
	}
}

// extractVoterID reads the EPIC number from the embedded text layer
// only. OCR misreads identifiers too often to be trusted here; a cell
// whose text layer yields no valid EPIC number is skipped downstream.
func (w *worker) extractVoterID(task cellTask, counts *methodCounts) (string, float64) {
	rect, ok := w.layout.FieldRect(task.row, task.col, w.template.VoterIDBox)
	if !ok {
		return "", 0
	}

	raw, err := w.doc.TextInRegion(task.page, rect)
	if err != nil || raw == "" {
		return "", 0
	}

	id := epic.Extract(raw)
	if id == "" {
		return "", 0
	}
	corrected := epic.Correct(id)
	if !epic.Validate(corrected) {
		return "", 0
	}

	counts.textLayer++
	return corrected, 0.99
}

// extractPhoto renders the photo box and scores it. Blank crops come
// back with an empty Base64 and are not counted.
func (w *worker) extractPhoto(task cellTask, counts *methodCounts) photo.Photo {
	rect, ok := w.layout.FieldRect(task.row, task.col, w.template.PhotoBox)
	if !ok {
		return photo.Photo{}
	}

	img, err := w.doc.RenderRegion(task.page, rect, ocr.DPI)
	if err != nil {
		return photo.Photo{}
	}
	extracted, err := photo.Extract(img)
	if err != nil {
		return photo.Photo{}
	}

	if extracted.Base64 != "" {
		counts.photos++
		if extracted.Enhanced {
			counts.photosEnhanced++
		}
	}
	return extracted
}

// fieldText walks the strategy chain for one template box.
//
// textLayerFirst fields (house number, gender, age, assembly and serial
// numbers) read the embedded text layer and only consult the cloud
// cache when it is empty. The remaining fields (name, relative name)
// run local OCR and then always consult the cloud cache, because cloud
// OCR reads Devanagari better; the local result survives only as a
// fallback. A direct cloud region call is issued solely when the page
// has no valid annotation cache.
func (w *worker) fieldText(ctx context.Context, task cellTask, box *grid.Box, textLayerFirst bool, counts *methodCounts) string {
	rect, ok := w.layout.FieldRect(task.row, task.col, box)
	if !ok {
		return ""
	}

	if textLayerFirst {
		if raw, err := w.doc.TextInRegion(task.page, rect); err == nil {
			if cleaned := collapseSpaces(raw); cleaned != "" {
				counts.textLayer++
				return devanagari.CorrectText(cleaned)
			}
		}
	}

	cloudPreferred := !textLayerFirst

	var ocrText string
	if cloudPreferred {
		if engine := w.localEngine(); engine != nil {
			if img, err := w.doc.RenderRegion(task.page, rect, ocr.DPI); err == nil {
				if recognized, err := engine.Recognize(img); err == nil {
					if text := strings.TrimSpace(recognized.Text); text != "" {
						ocrText = devanagari.CorrectText(text)
						counts.localOCR++
					}
				}
			}
		}
		if ocrText != "" && !w.cloudAvailable(task) {
			return ocrText
		}
	}

	if task.annotations.Valid() {
		if cloudPreferred || ocrText == "" {
			if text, _ := task.annotations.QueryRegion(rect.X, rect.Y, rect.Width, rect.Height); text != "" {
				counts.cloudLookups++
				return devanagari.CorrectText(text)
			}
		}
		// A valid cache that holds no text for the region ends the
		// chain; direct calls are never issued behind a cache.
	} else if w.providers.Regions != nil {
		if img, err := w.doc.RenderRegion(task.page, rect, ocr.DPI); err == nil {
			callCtx, cancel := cloudCall(ctx)
			defer cancel()
			if res, err := w.providers.Regions.AnnotateRegion(callCtx, img); err == nil {
				if text := strings.TrimSpace(res.Text); text != "" {
					counts.cloudLookups++
					return devanagari.CorrectText(text)
				}
			}
		}
	}

	return ocrText
}

func (w *worker) transliterate(ctx context.Context, name string) string {
	if name == "" {
		return ""
	}
	callCtx, cancel := cloudCall(ctx)
	defer cancel()
	english, err := w.providers.Names.TransliterateName(callCtx, name)
	if err != nil {
		return ""
	}
	return english
}
