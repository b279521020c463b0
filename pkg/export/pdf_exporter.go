package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// TimetableEntry is one rendered session cell.
type TimetableEntry struct {
	Time    string
	Course  string
	Teacher string
	Room    string
}

// TimetableDay is one day column of the weekly grid. Weight mirrors the
// on-screen column weighting (populated days render wider).
type TimetableDay struct {
	Day     string
	Weight  int
	Entries []TimetableEntry
}

// PDFExporter renders a weekly timetable grid into a PDF document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderWeek lays the days out as weighted columns, one landscape page.
func (e *PDFExporter) RenderWeek(title string, days []TimetableDay) ([]byte, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("pdf requires at least one day column")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	totalWeight := 0
	for _, day := range days {
		if day.Weight <= 0 {
			day.Weight = 1
		}
		totalWeight += day.Weight
	}
	if totalWeight == 0 {
		totalWeight = len(days)
	}
	usable := 277.0
	unit := usable / float64(totalWeight)

	pdf.SetFont("Arial", "B", 10)
	for _, day := range days {
		w := unit * float64(weightOf(day))
		pdf.CellFormat(w, 8, day.Day, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	maxRows := 0
	for _, day := range days {
		if len(day.Entries) > maxRows {
			maxRows = len(day.Entries)
		}
	}

	pdf.SetFont("Arial", "", 7)
	for row := 0; row < maxRows; row++ {
		for _, day := range days {
			w := unit * float64(weightOf(day))
			text := ""
			if row < len(day.Entries) {
				entry := day.Entries[row]
				text = fmt.Sprintf("%s %s / %s / %s", entry.Time, entry.Course, entry.Room, entry.Teacher)
			}
			pdf.CellFormat(w, 12, truncate(text, int(w/1.6)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func weightOf(day TimetableDay) int {
	if day.Weight <= 0 {
		return 1
	}
	return day.Weight
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
