package dto

// CreateGradeRequest captures a single grade entry.
type CreateGradeRequest struct {
	StudentID      string  `json:"student_id" validate:"required"`
	SubjectID      string  `json:"subject_id" validate:"required"`
	ClassID        string  `json:"class_id" validate:"required"`
	SchoolYear     string  `json:"school_year" validate:"required,max=20"`
	Semester       string  `json:"semester" validate:"required,max=20"`
	AssessmentName *string `json:"assessment_name" validate:"omitempty,max=150"`
	AssessmentType string  `json:"assessment_type" validate:"required"`
	Grade          float64 `json:"grade" validate:"gte=0,ltefield=MaxGrade"`
	MaxGrade       float64 `json:"max_grade" validate:"gt=0"`
	Weighting      float64 `json:"weighting" validate:"gt=0"`
	Appreciation   *string `json:"appreciation" validate:"omitempty,max=500"`
	// TeacherID is only honoured for admins; teachers always own what they enter.
	TeacherID *string `json:"teacher_id,omitempty"`
}

// BulkCreateGradesRequest inserts several grades atomically.
type BulkCreateGradesRequest struct {
	Grades []CreateGradeRequest `json:"grades" validate:"required,min=1,max=500,dive"`
}

// UpdateGradeRequest replaces the mutable fields of a grade.
type UpdateGradeRequest struct {
	AssessmentName *string `json:"assessment_name" validate:"omitempty,max=150"`
	AssessmentType string  `json:"assessment_type" validate:"required"`
	Grade          float64 `json:"grade" validate:"gte=0,ltefield=MaxGrade"`
	MaxGrade       float64 `json:"max_grade" validate:"gt=0"`
	Weighting      float64 `json:"weighting" validate:"gt=0"`
	Appreciation   *string `json:"appreciation" validate:"omitempty,max=500"`
}
