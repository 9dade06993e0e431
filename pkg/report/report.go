// Package report serializes extracted voter records into the Excel
// workbook operators distribute.
//
// The workbook has a fixed fourteen column schema, a styled header row
// and alternating row shading. EPIC numbers pass through the correction
// tables once more on write, so a workbook never ships an identifier a
// later pipeline change could have repaired.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/votergrid/votergrid/pkg/epic"
	"github.com/votergrid/votergrid/pkg/extract"
)

// SheetName is the single worksheet holding the records.
const SheetName = "Voter Data"

// Headers is the fixed column schema, in workbook order.
var Headers = []string{
	"EPIC No",
	"Name",
	"Name (English)",
	"Relative Name",
	"Relative Name (English)",
	"Relative Type",
	"House Number",
	"Gender",
	"Age",
	"Assembly Number",
	"Serial Number",
	"Booth Center",
	"Booth Address",
	"Base64 Image String",
}

var columnWidths = []float64{20, 30, 30, 30, 30, 15, 15, 10, 10, 20, 15, 25, 30, 80}

// Build creates the workbook in memory. The caller owns the returned
// file and must close it; on error the file is already closed.
func Build(records []extract.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := populate(f, records); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func populate(f *excelize.File, records []extract.Record) error {
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	thin := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thin,
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	rowStyle, err := f.NewStyle(&excelize.Style{Border: thin})
	if err != nil {
		return fmt.Errorf("failed to create row style: %w", err)
	}
	shadedStyle, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F2F2F2"}},
		Border: thin,
	})
	if err != nil {
		return fmt.Errorf("failed to create shaded row style: %w", err)
	}

	for col, header := range Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header %q: %w", header, err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to name column %d: %w", col+1, err)
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "N1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, rec := range records {
		row := i + 2

		voterID := rec.VoterID
		if voterID != "" {
			voterID = epic.Correct(voterID)
		}

		values := []any{
			voterID,
			rec.Name,
			rec.NameEnglish,
			rec.RelativeName,
			rec.RelativeNameEnglish,
			rec.RelativeType,
			rec.HouseNumber,
			rec.Gender,
			rec.Age,
			rec.AssemblyNumber,
			rec.SerialNumber,
			rec.BoothCenter,
			rec.BoothAddress,
			rec.PhotoBase64,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}

		style := rowStyle
		if i%2 == 0 {
			style = shadedStyle
		}
		first := fmt.Sprintf("A%d", row)
		last := fmt.Sprintf("N%d", row)
		if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
			return fmt.Errorf("failed to style row %d: %w", row, err)
		}
	}

	return nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, records []extract.Record) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Save builds the workbook and writes it to path.
func Save(path string, records []extract.Record) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
