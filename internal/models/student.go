package models

import "time"

// Student represents a learner registered in the school.
type Student struct {
	ID        string     `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	ClassID   *string    `db:"class_id" json:"class_id,omitempty"`
	ClassName *string    `db:"class_name" json:"class_name,omitempty"`
	PhotoPath *string    `db:"photo_path" json:"photo_path,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassID   string
	ClassName string
}
