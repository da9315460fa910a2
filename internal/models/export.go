package models

import "time"

// ExportFormat enumerates supported class result export formats.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

// Valid reports whether f is a supported export format.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatXLSX, ExportFormatPDF:
		return true
	}
	return false
}

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// ExportResult points at a rendered export file.
type ExportResult struct {
	Filename  string       `json:"filename"`
	Format    ExportFormat `json:"format"`
	Rows      int          `json:"rows"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}
