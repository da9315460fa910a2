package models

import "time"

// Class represents a class or section.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ProgramID *string   `db:"program_id" json:"program_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
