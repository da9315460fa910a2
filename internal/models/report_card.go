package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportCardStatus captures the report card lifecycle.
type ReportCardStatus string

const (
	ReportCardDraft     ReportCardStatus = "draft"
	ReportCardGenerated ReportCardStatus = "generated"
	ReportCardFinalized ReportCardStatus = "finalized"
)

// NormalizedMaxGrade is the scale every subject average is expressed on.
const NormalizedMaxGrade = 20

// GradeDetail is the per-assessment line kept inside a subject average.
type GradeDetail struct {
	AssessmentName string         `json:"assessment_name"`
	AssessmentType AssessmentType `json:"assessment_type"`
	Grade          float64        `json:"grade"`
	MaxGrade       float64        `json:"max_grade"`
	Weighting      float64        `json:"weighting"`
	Appreciation   *string        `json:"appreciation,omitempty"`
}

// SubjectAverage is the derived per-subject summary of a student's grades.
type SubjectAverage struct {
	Subject          string        `json:"subject"`
	Average          float64       `json:"average"`
	MaxGrade         float64       `json:"max_grade"`
	Weighting        float64       `json:"weighting"`
	Appreciation     *string       `json:"appreciation,omitempty"`
	GradeCount       int           `json:"grade_count"`
	ClassAverage     *float64      `json:"class_average,omitempty"`
	MinAverage       *float64      `json:"min_average,omitempty"`
	MaxAverage       *float64      `json:"max_average,omitempty"`
	IndividualGrades []GradeDetail `json:"individual_grades"`
}

// ClassSubjectStats is one row of the class statistics function.
type ClassSubjectStats struct {
	SubjectName string  `db:"subject_name" json:"subject_name"`
	ClassAvg    float64 `db:"class_avg" json:"class_avg"`
	MinAvg      float64 `db:"min_avg" json:"min_avg"`
	MaxAvg      float64 `db:"max_avg" json:"max_avg"`
}

// SubjectWeight is one row of the subject weight function.
type SubjectWeight struct {
	SubjectName string  `db:"subject_name" json:"subject_name"`
	Weighting   float64 `db:"weighting" json:"weighting"`
}

// ReportCardStudent is the identity block printed on a report card.
type ReportCardStudent struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	ClassName string     `json:"class_name"`
	PhotoPath *string    `json:"photo_path,omitempty"`
}

// FullName joins first and last name.
func (s ReportCardStudent) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}

// ReportCardData is the assembled document stored as generated_data / edited_data.
type ReportCardData struct {
	Student             ReportCardStudent  `json:"student"`
	ProgramName         *string            `json:"program_name,omitempty"`
	SchoolYear          string             `json:"school_year"`
	Semester            string             `json:"semester"`
	ClassName           string             `json:"class_name"`
	SubjectAverages     []SubjectAverage   `json:"subject_averages"`
	StudentAverage      float64            `json:"student_average"`
	ClassAverage        *float64           `json:"class_average,omitempty"`
	GeneralAppreciation *string            `json:"general_appreciation,omitempty"`
	Template            ReportCardTemplate `json:"template"`
	GeneratedAt         time.Time          `json:"generated_at"`
}

// Value marshals the document to JSON for persistence.
func (d ReportCardData) Value() (driver.Value, error) {
	if d.SubjectAverages == nil {
		d.SubjectAverages = []SubjectAverage{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal report card data: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the document.
func (d *ReportCardData) Scan(value interface{}) error {
	if value == nil {
		*d = ReportCardData{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportCardData", value)
	}
	if len(data) == 0 {
		*d = ReportCardData{}
		return nil
	}
	if err := json.Unmarshal(data, d); err != nil {
		return fmt.Errorf("unmarshal report card data: %w", err)
	}
	return nil
}

// ReportCard is a persisted student report card for one school year and semester.
type ReportCard struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	SchoolYear    string           `db:"school_year" json:"school_year"`
	Semester      string           `db:"semester" json:"semester"`
	ClassName     string           `db:"class_name" json:"class_name"`
	TemplateID    *string          `db:"template_id" json:"template_id,omitempty"`
	GeneratedData ReportCardData   `db:"generated_data" json:"generated_data"`
	EditedData    *ReportCardData  `db:"edited_data" json:"edited_data,omitempty"`
	Status        ReportCardStatus `db:"status" json:"status"`
	PDFURL        *string          `db:"pdf_url" json:"pdf_url,omitempty"`
	PDFPath       *string          `db:"pdf_path" json:"-"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// EffectiveData returns the edited document when present, else the generated one.
func (r *ReportCard) EffectiveData() ReportCardData {
	if r.EditedData != nil {
		return *r.EditedData
	}
	return r.GeneratedData
}

// HasPDF reports whether a stored PDF is attached.
func (r *ReportCard) HasPDF() bool {
	return r.PDFPath != nil && *r.PDFPath != ""
}

// ReportCardFilter scopes report card listings.
type ReportCardFilter struct {
	StudentID  string
	ClassName  string
	SchoolYear string
	Semester   string
	Status     ReportCardStatus
	Page       int
	PageSize   int
}
