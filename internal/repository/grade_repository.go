package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

const gradeSelect = `SELECT g.id, g.student_id, g.subject_id, s.name AS subject, g.class_id, c.name AS class_name,
        g.school_year, g.semester, g.assessment_name, g.assessment_type, g.grade, g.max_grade, g.weighting,
        g.appreciation, g.teacher_id, g.is_active, g.deleted_at, g.created_at, g.updated_at
        FROM grades g
        JOIN subjects s ON s.id = g.subject_id
        JOIN classes c ON c.id = g.class_id`

const gradeInsert = `INSERT INTO grades (id, student_id, subject_id, class_id, school_year, semester, assessment_name,
        assessment_type, grade, max_grade, weighting, appreciation, teacher_id, is_active, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :class_id, :school_year, :semester, :assessment_name,
        :assessment_type, :grade, :max_grade, :weighting, :appreciation, :teacher_id, TRUE, :created_at, :updated_at)`

// GradeRepository handles grade entry persistence. Reads only see active rows.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns active grades matching the filter with the total count.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	where := " WHERE g.is_active = TRUE"
	var args []interface{}
	add := func(cond string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where += fmt.Sprintf(" AND %s = $%d", cond, len(args))
	}
	add("g.student_id", filter.StudentID)
	add("g.class_id", filter.ClassID)
	add("c.name", filter.ClassName)
	add("g.subject_id", filter.SubjectID)
	add("g.teacher_id", filter.TeacherID)
	add("g.school_year", filter.SchoolYear)
	add("g.semester", filter.Semester)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY g.created_at DESC LIMIT %d OFFSET %d", gradeSelect, where, pageSize, offset)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM grades g JOIN subjects s ON s.id = g.subject_id JOIN classes c ON c.id = g.class_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// ListForStudentPeriod returns a student's active grades for a period, most recent first.
func (r *GradeRepository) ListForStudentPeriod(ctx context.Context, studentID, schoolYear, semester string) ([]models.Grade, error) {
	query := gradeSelect + ` WHERE g.is_active = TRUE AND g.student_id = $1 AND g.school_year = $2 AND g.semester = $3
        ORDER BY g.created_at DESC`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, studentID, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// ListForClassPeriod returns active grades of every student of a class, keyed by student ID.
func (r *GradeRepository) ListForClassPeriod(ctx context.Context, className, schoolYear, semester string) (map[string][]models.Grade, error) {
	query := gradeSelect + ` WHERE g.is_active = TRUE AND c.name = $1 AND g.school_year = $2 AND g.semester = $3
        ORDER BY g.student_id, g.created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, className, schoolYear, semester)
	if err != nil {
		return nil, fmt.Errorf("list class grades: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.Grade)
	for rows.Next() {
		var grade models.Grade
		if err := rows.StructScan(&grade); err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		result[grade.StudentID] = append(result[grade.StudentID], grade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class grades: %w", err)
	}
	return result, nil
}

// FindByID returns an active grade.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, gradeSelect+` WHERE g.id = $1 AND g.is_active = TRUE`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// FindWithDeleted returns a grade whether or not it was soft-deleted.
func (r *GradeRepository) FindWithDeleted(ctx context.Context, id string) (*models.Grade, error) {
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, gradeSelect+` WHERE g.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

func prepareGrade(grade *models.Grade, now time.Time) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	grade.IsActive = true
}

// Create inserts a grade.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	prepareGrade(grade, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, gradeInsert, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// BulkCreate inserts multiple grades in a single transaction.
func (r *GradeRepository) BulkCreate(ctx context.Context, grades []models.Grade) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade tx: %w", err)
	}
	now := time.Now().UTC()
	for i := range grades {
		prepareGrade(&grades[i], now)
		if _, err := tx.NamedExecContext(ctx, gradeInsert, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk create grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grades: %w", err)
	}
	return nil
}

// Update writes the mutable fields of an active grade.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET assessment_name = :assessment_name, assessment_type = :assessment_type,
        grade = :grade, max_grade = :max_grade, weighting = :weighting, appreciation = :appreciation, updated_at = :updated_at
        WHERE id = :id AND is_active = TRUE`
	res, err := r.db.NamedExecContext(ctx, query, grade)
	if err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return expectAffected(res)
}

// SoftDelete marks a grade inactive.
func (r *GradeRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE grades SET is_active = FALSE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("soft delete grade: %w", err)
	}
	return expectAffected(res)
}

// HardDelete removes a grade row.
func (r *GradeRepository) HardDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return expectAffected(res)
}

// expectAffected maps zero affected rows to sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
