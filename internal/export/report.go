// Package export writes the rule/LLM comparison report.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cif-address/internal/store"
)

const sheetName = "Comparison"

var headers = []string{"ID", "Address", "Rule", "LLM", "Agree"}

// Agree reports whether both outputs are present and identical once
// surrounding whitespace is ignored.
func Agree(r store.Row) bool {
	rule := strings.TrimSpace(r.Rule)
	llm := strings.TrimSpace(r.LLM)
	return rule != "" && rule == llm
}

// Summary counts rows by agreement.
type Summary struct {
	Total     int
	Agreed    int
	RuleOnly  int
	LLMOnly   int
	Disagreed int
}

// Summarize tallies rows for the report footer and the export command.
func Summarize(rows []store.Row) Summary {
	var s Summary
	for _, r := range rows {
		s.Total++
		hasRule := strings.TrimSpace(r.Rule) != ""
		hasLLM := strings.TrimSpace(r.LLM) != ""
		switch {
		case Agree(r):
			s.Agreed++
		case hasRule && !hasLLM:
			s.RuleOnly++
		case hasLLM && !hasRule:
			s.LLMOnly++
		default:
			s.Disagreed++
		}
	}
	return s
}

func record(r store.Row) []string {
	return []string{r.ID, r.Address, r.Rule, r.LLM, fmt.Sprintf("%t", Agree(r))}
}

// WriteCSV writes rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []store.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(record(r)); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// buildWorkbook lays rows out on a single sheet; disagreeing rows with both
// outputs present are highlighted.
func buildWorkbook(rows []store.Row) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	diffStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create diff style: %w", err)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, r := range rows {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.Address)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.Rule)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.LLM)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), Agree(r))
		if r.Rule != "" && r.LLM != "" && !Agree(r) {
			f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("E%d", row), diffStyle)
		}
	}

	f.SetColWidth(sheetName, "A", "A", 10)
	f.SetColWidth(sheetName, "B", "D", 45)
	f.SetColWidth(sheetName, "E", "E", 8)
	return f, nil
}

// WriteXLSX writes rows as an Excel workbook to w.
func WriteXLSX(w io.Writer, rows []store.Row) error {
	f, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// SaveXLSX writes rows as an Excel workbook at path.
func SaveXLSX(path string, rows []store.Row) error {
	f, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
