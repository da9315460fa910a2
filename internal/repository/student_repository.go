package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

const studentColumns = `s.id, s.first_name, s.last_name, s.birth_date, s.class_id,
        COALESCE(c.name, s.class_name) AS class_name, s.photo_path, s.created_at, s.updated_at`

// StudentRepository provides read access to students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student with its class name resolved through the class relation when present.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE s.id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// List returns students of a class ordered by name.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE 1=1`
	var args []interface{}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		query += fmt.Sprintf(" AND s.class_id = $%d", len(args))
	}
	if filter.ClassName != "" {
		args = append(args, filter.ClassName)
		query += fmt.Sprintf(" AND COALESCE(c.name, s.class_name) = $%d", len(args))
	}
	query += " ORDER BY s.last_name, s.first_name"

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
