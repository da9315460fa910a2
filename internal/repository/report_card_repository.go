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

const reportCardColumns = `id, student_id, school_year, semester, class_name, template_id, generated_data, edited_data,
        status, pdf_url, pdf_path, created_at, updated_at`

// ReportCardRepository persists student report cards.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository creates a new report card repository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

// FindByID returns a report card.
func (r *ReportCardRepository) FindByID(ctx context.Context, id string) (*models.ReportCard, error) {
	query := `SELECT ` + reportCardColumns + ` FROM student_report_cards WHERE id = $1`
	return r.get(ctx, "find report card", query, id)
}

// FindByKey returns the report card of a student for a period.
func (r *ReportCardRepository) FindByKey(ctx context.Context, studentID, schoolYear, semester string) (*models.ReportCard, error) {
	query := `SELECT ` + reportCardColumns + ` FROM student_report_cards WHERE student_id = $1 AND school_year = $2 AND semester = $3`
	return r.get(ctx, "find report card by key", query, studentID, schoolYear, semester)
}

func (r *ReportCardRepository) get(ctx context.Context, op, query string, args ...interface{}) (*models.ReportCard, error) {
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &card, nil
}

// Upsert writes freshly generated data keyed by (student_id, school_year, semester).
// An existing row keeps its ID and loses its edits and PDF; status returns to draft.
func (r *ReportCardRepository) Upsert(ctx context.Context, card *models.ReportCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	card.UpdatedAt = now
	card.EditedData = nil
	card.Status = models.ReportCardDraft
	card.PDFURL = nil
	card.PDFPath = nil

	const query = `INSERT INTO student_report_cards (id, student_id, school_year, semester, class_name, template_id,
        generated_data, edited_data, status, pdf_url, pdf_path, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, 'draft', NULL, NULL, $8, $8)
        ON CONFLICT (student_id, school_year, semester) DO UPDATE SET
            class_name = EXCLUDED.class_name,
            template_id = EXCLUDED.template_id,
            generated_data = EXCLUDED.generated_data,
            edited_data = NULL,
            status = 'draft',
            pdf_url = NULL,
            pdf_path = NULL,
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, card.ID, card.StudentID, card.SchoolYear, card.Semester, card.ClassName,
		card.TemplateID, card.GeneratedData, now)
	if err := row.Scan(&card.ID, &card.CreatedAt); err != nil {
		return fmt.Errorf("upsert report card: %w", err)
	}
	return nil
}

// List returns report cards matching the filter with the total count.
func (r *ReportCardRepository) List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCard, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add("student_id", filter.StudentID)
	add("class_name", filter.ClassName)
	add("school_year", filter.SchoolYear)
	add("semester", filter.Semester)
	add("status", string(filter.Status))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM student_report_cards%s ORDER BY updated_at DESC LIMIT %d OFFSET %d", reportCardColumns, where, pageSize, offset)
	var cards []models.ReportCard
	if err := r.db.SelectContext(ctx, &cards, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list report cards: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM student_report_cards"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count report cards: %w", err)
	}
	return cards, total, nil
}

// UpdateEdits stores editor overrides and moves the card back to draft.
// Finalized cards are left untouched and reported as sql.ErrNoRows.
func (r *ReportCardRepository) UpdateEdits(ctx context.Context, id string, edited models.ReportCardData) error {
	const query = `UPDATE student_report_cards SET edited_data = $2, status = 'draft', updated_at = $3
        WHERE id = $1 AND status <> 'finalized'`
	res, err := r.db.ExecContext(ctx, query, id, edited, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update report card edits: %w", err)
	}
	return expectAffected(res)
}

// UpdatePDF records the rendered PDF and marks the card generated.
func (r *ReportCardRepository) UpdatePDF(ctx context.Context, id, url, path string) error {
	const query = `UPDATE student_report_cards SET status = 'generated', pdf_url = $2, pdf_path = $3, updated_at = $4
        WHERE id = $1 AND status <> 'finalized'`
	res, err := r.db.ExecContext(ctx, query, id, url, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update report card pdf: %w", err)
	}
	return expectAffected(res)
}

// ClearPDF forgets the rendered PDF and moves the card back to draft.
// Finalized cards are left untouched and reported as sql.ErrNoRows.
func (r *ReportCardRepository) ClearPDF(ctx context.Context, id string) error {
	const query = `UPDATE student_report_cards SET status = 'draft', pdf_url = NULL, pdf_path = NULL, updated_at = $2
        WHERE id = $1 AND status <> 'finalized'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear report card pdf: %w", err)
	}
	return expectAffected(res)
}

// TransitionStatus moves a card from one status to another. Returns sql.ErrNoRows
// when the card is not in the expected status.
func (r *ReportCardRepository) TransitionStatus(ctx context.Context, id string, from, to models.ReportCardStatus) error {
	const query = `UPDATE student_report_cards SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transition report card status: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a report card row.
func (r *ReportCardRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_report_cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report card: %w", err)
	}
	return expectAffected(res)
}
