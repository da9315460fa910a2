package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionGradeCreate        = "GRADE_CREATE"
	AuditActionGradeUpdate        = "GRADE_UPDATE"
	AuditActionGradeDelete        = "GRADE_DELETE"
	AuditActionReportCardGenerate = "REPORT_CARD_GENERATE"
	AuditActionReportCardEdit     = "REPORT_CARD_EDIT"
	AuditActionReportCardFinalize = "REPORT_CARD_FINALIZE"
	AuditActionReportCardDelete   = "REPORT_CARD_DELETE"
	AuditActionReportCardPDF      = "REPORT_CARD_PDF"
	AuditActionExport             = "EXPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditLogFilter scopes audit log listings.
type AuditLogFilter struct {
	UserID   string
	Action   string
	Resource string
	Page     int
	PageSize int
}
