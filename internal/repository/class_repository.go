package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

// ClassRepository provides access to classes and their programs.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, program_id, created_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// ProgramNameByClassID resolves the program of a class. Returns sql.ErrNoRows
// when the class has no program.
func (r *ClassRepository) ProgramNameByClassID(ctx context.Context, classID string) (string, error) {
	const query = `SELECT p.name FROM classes c JOIN programs p ON p.id = c.program_id WHERE c.id = $1`
	return r.programName(ctx, query, classID)
}

// ProgramNameByClassName resolves the program of a class looked up by name.
func (r *ClassRepository) ProgramNameByClassName(ctx context.Context, className string) (string, error) {
	const query = `SELECT p.name FROM classes c JOIN programs p ON p.id = c.program_id WHERE c.name = $1`
	return r.programName(ctx, query, className)
}

func (r *ClassRepository) programName(ctx context.Context, query, arg string) (string, error) {
	var name string
	if err := r.db.GetContext(ctx, &name, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("resolve program: %w", err)
	}
	return name, nil
}
