package dto

import (
	"time"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

// GenerateReportCardRequest captures POST /report-cards/generate payload.
// ClassName defaults to the student's current class when empty.
type GenerateReportCardRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	SchoolYear string `json:"school_year" validate:"required,max=20"`
	Semester   string `json:"semester" validate:"required,max=20"`
	ClassName  string `json:"class_name" validate:"omitempty,max=100"`
}

// UpdateReportCardEditsRequest carries the manually corrected document.
type UpdateReportCardEditsRequest struct {
	EditedData *models.ReportCardData `json:"edited_data" validate:"required"`
}

// BulkReportCardPDFRequest lists report cards to render in one call.
type BulkReportCardPDFRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=200,dive,required"`
}

// ReportCardPDFResponse is returned after a PDF was rendered and stored.
type ReportCardPDFResponse struct {
	ID        string                  `json:"id"`
	Status    models.ReportCardStatus `json:"status"`
	PDFURL    string                  `json:"pdf_url"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
}

// BulkReportCardPDFResult is the outcome for one report card of a bulk run.
type BulkReportCardPDFResult struct {
	ID      string  `json:"id"`
	Success bool    `json:"success"`
	PDFURL  *string `json:"pdf_url,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// BulkReportCardPDFResponse summarises a bulk run. Results keep request order.
type BulkReportCardPDFResponse struct {
	Total     int                       `json:"total"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Results   []BulkReportCardPDFResult `json:"results"`
}
