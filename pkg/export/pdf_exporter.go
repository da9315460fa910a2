package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// landscapeColumns is the column count above which tables are printed landscape.
const landscapeColumns = 7

// PDFExporter renders datasets into a basic tabular PDF, used for class result sheets.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation, width := "P", 190.0
	if len(data.Headers) > landscapeColumns {
		orientation, width = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont(defaultFont, "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	// First column holds names and gets twice the share of the others.
	unit := width / float64(len(data.Headers)+1)
	colWidth := func(i int) float64 {
		if i == 0 {
			return unit * 2
		}
		return unit
	}

	pdf.SetFont(defaultFont, "B", 9)
	for i, header := range data.Headers {
		pdf.CellFormat(colWidth(i), 8, fit(pdf, tr, header, colWidth(i)-2), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(defaultFont, "", 8)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(colWidth(i), 7, fit(pdf, tr, row[header], colWidth(i)-2), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
