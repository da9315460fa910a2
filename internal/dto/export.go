package dto

// ClassResultsExportRequest captures POST /exports/class-results payload.
type ClassResultsExportRequest struct {
	ClassName  string `json:"class_name" validate:"required,max=100"`
	SchoolYear string `json:"school_year" validate:"required,max=20"`
	Semester   string `json:"semester" validate:"required,max=20"`
	Format     string `json:"format" validate:"required,oneof=csv xlsx pdf"`
}
