package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

const templateColumns = `id, name, is_default, is_active, school_name, primary_color, secondary_color, logo_url,
        header_text, footer_text, show_class_stats, show_appreciations, show_individual_grades, show_photo,
        custom_html, created_at, updated_at`

// TemplateRepository reads report card templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FindActive returns the active default template, else the oldest active one.
// Returns sql.ErrNoRows when no template is active.
func (r *TemplateRepository) FindActive(ctx context.Context) (*models.ReportCardTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM report_card_templates WHERE is_active = TRUE
        ORDER BY is_default DESC, created_at ASC LIMIT 1`
	var tpl models.ReportCardTemplate
	if err := r.db.GetContext(ctx, &tpl, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active template: %w", err)
	}
	return &tpl, nil
}
