package models

import (
	"fmt"
	"strings"
	"time"
)

// AssessmentType is the closed set of assessment kinds a grade can carry.
type AssessmentType string

const (
	AssessmentExam      AssessmentType = "EXAM"
	AssessmentTest      AssessmentType = "TEST"
	AssessmentQuiz      AssessmentType = "QUIZ"
	AssessmentHomework  AssessmentType = "HOMEWORK"
	AssessmentOral      AssessmentType = "ORAL"
	AssessmentProject   AssessmentType = "PROJECT"
	AssessmentPractical AssessmentType = "PRACTICAL"
)

var assessmentLabels = map[AssessmentType]string{
	AssessmentExam:      "Examen",
	AssessmentTest:      "Devoir surveillé",
	AssessmentQuiz:      "Interrogation",
	AssessmentHomework:  "Devoir maison",
	AssessmentOral:      "Oral",
	AssessmentProject:   "Projet",
	AssessmentPractical: "Travaux pratiques",
}

// AssessmentTypes lists every valid assessment type in display order.
func AssessmentTypes() []AssessmentType {
	return []AssessmentType{
		AssessmentExam,
		AssessmentTest,
		AssessmentQuiz,
		AssessmentHomework,
		AssessmentOral,
		AssessmentProject,
		AssessmentPractical,
	}
}

// ParseAssessmentType normalises raw input into a known assessment type.
func ParseAssessmentType(raw string) (AssessmentType, error) {
	t := AssessmentType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := assessmentLabels[t]; !ok {
		return "", fmt.Errorf("unknown assessment type %q", raw)
	}
	return t, nil
}

// Valid reports whether t is a known assessment type.
func (t AssessmentType) Valid() bool {
	_, ok := assessmentLabels[t]
	return ok
}

// Label returns the display label, or the raw value for unknown types.
func (t AssessmentType) Label() string {
	if label, ok := assessmentLabels[t]; ok {
		return label
	}
	return string(t)
}

// Grade is a single assessment result of a student in a subject.
type Grade struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	SubjectID      string         `db:"subject_id" json:"subject_id"`
	Subject        string         `db:"subject" json:"subject"`
	ClassID        string         `db:"class_id" json:"class_id"`
	ClassName      string         `db:"class_name" json:"class_name"`
	SchoolYear     string         `db:"school_year" json:"school_year"`
	Semester       string         `db:"semester" json:"semester"`
	AssessmentName *string        `db:"assessment_name" json:"assessment_name,omitempty"`
	AssessmentType AssessmentType `db:"assessment_type" json:"assessment_type"`
	Grade          float64        `db:"grade" json:"grade"`
	MaxGrade       float64        `db:"max_grade" json:"max_grade"`
	Weighting      float64        `db:"weighting" json:"weighting"`
	Appreciation   *string        `db:"appreciation" json:"appreciation,omitempty"`
	TeacherID      *string        `db:"teacher_id" json:"teacher_id,omitempty"`
	IsActive       bool           `db:"is_active" json:"is_active"`
	DeletedAt      *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the assessment name, falling back to the type label.
func (g Grade) DisplayName() string {
	if g.AssessmentName != nil && strings.TrimSpace(*g.AssessmentName) != "" {
		return *g.AssessmentName
	}
	return g.AssessmentType.Label()
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	StudentID  string
	ClassID    string
	ClassName  string
	SubjectID  string
	TeacherID  string
	SchoolYear string
	Semester   string
	Page       int
	PageSize   int
}
