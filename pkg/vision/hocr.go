package vision

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/hocr.tmpl
var templateFS embed.FS

// hocrBBox is a word or line rectangle in rendered image pixels,
// top-left and bottom-right corners as hOCR bbox properties expect.
type hocrBBox struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

type hocrWord struct {
	ID         string
	Text       string
	BBox       hocrBBox
	Confidence int
}

type hocrLine struct {
	ID    string
	BBox  hocrBBox
	Words []hocrWord
}

type hocrPage struct {
	Number int
	Width  int
	Height int
	Lines  []hocrLine
}

type hocrDoc struct {
	Title  string
	System string
	Pages  []hocrPage
}

// ExportHOCR renders cached page annotations as an hOCR HTML document.
// Words are grouped into lines by vertical overlap and emitted in
// reading order, so the export can be eyeballed against the scanned
// page when calibrating a layout. Pages without annotations are
// emitted empty.
func ExportHOCR(title string, pages []*PageAnnotations) (string, error) {
	tmpl, err := template.New("hocr.tmpl").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
	}).ParseFS(templateFS, "templates/hocr.tmpl")
	if err != nil {
		return "", fmt.Errorf("parsing hOCR template: %w", err)
	}

	doc := hocrDoc{
		Title:  title,
		System: "votergrid",
	}
	for _, page := range pages {
		if page == nil {
			continue
		}
		doc.Pages = append(doc.Pages, buildHOCRPage(page))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("rendering hOCR template: %w", err)
	}
	return buf.String(), nil
}

func buildHOCRPage(page *PageAnnotations) hocrPage {
	out := hocrPage{
		Number: page.PageNumber,
		Width:  page.ImageWidth,
		Height: page.ImageHeight,
	}

	for _, group := range groupIntoLines(page.Annotations) {
		line := hocrLine{
			ID:   fmt.Sprintf("line_%d_%d", page.PageNumber, len(out.Lines)+1),
			BBox: boundsOf(group),
		}
		for i, ann := range group {
			conf := int(EstimateConfidence(ann.Text) * 100)
			line.Words = append(line.Words, hocrWord{
				ID:   fmt.Sprintf("word_%d_%d_%d", page.PageNumber, len(out.Lines)+1, i+1),
				Text: html.EscapeString(ann.Text),
				BBox: hocrBBox{
					X1: ann.X,
					Y1: ann.Y,
					X2: ann.X + ann.Width,
					Y2: ann.Y + ann.Height,
				},
				Confidence: conf,
			})
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

// groupIntoLines buckets words whose vertical centers fall inside an
// existing line's span, then orders lines top to bottom and words left
// to right. Providers return words in detection order, which for
// multi-column rolls is not reading order.
func groupIntoLines(annotations []Annotation) [][]Annotation {
	var lines [][]Annotation
	for _, ann := range annotations {
		if ann.Text == "" {
			continue
		}
		center := ann.Y + ann.Height/2

		placed := false
		for i, line := range lines {
			b := boundsOf(line)
			if center >= b.Y1 && center <= b.Y2 {
				lines[i] = append(lines[i], ann)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []Annotation{ann})
		}
	}

	for _, line := range lines {
		sort.Slice(line, func(i, j int) bool { return line[i].X < line[j].X })
	}
	sort.Slice(lines, func(i, j int) bool {
		return boundsOf(lines[i]).Y1 < boundsOf(lines[j]).Y1
	})
	return lines
}

func boundsOf(annotations []Annotation) hocrBBox {
	b := hocrBBox{
		X1: annotations[0].X,
		Y1: annotations[0].Y,
		X2: annotations[0].X + annotations[0].Width,
		Y2: annotations[0].Y + annotations[0].Height,
	}
	for _, ann := range annotations[1:] {
		b.X1 = min(b.X1, ann.X)
		b.Y1 = min(b.Y1, ann.Y)
		b.X2 = max(b.X2, ann.X+ann.Width)
		b.Y2 = max(b.Y2, ann.Y+ann.Height)
	}
	return b
}
