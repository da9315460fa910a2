package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

// ReportStatsRepository calls the read-only SQL functions backing report cards.
type ReportStatsRepository struct {
	db *sqlx.DB
}

// NewReportStatsRepository creates a new report statistics repository.
func NewReportStatsRepository(db *sqlx.DB) *ReportStatsRepository {
	return &ReportStatsRepository{db: db}
}

// SubjectWeights returns the authoritative subject weightings of a class for a period.
func (r *ReportStatsRepository) SubjectWeights(ctx context.Context, className, schoolYear, semester string) ([]models.SubjectWeight, error) {
	const query = `SELECT subject_name, weighting FROM get_subject_weights($1, $2, $3)`
	var weights []models.SubjectWeight
	if err := r.db.SelectContext(ctx, &weights, query, className, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("get subject weights: %w", err)
	}
	return weights, nil
}

// ClassSubjectStats returns per-subject class average, minimum and maximum.
func (r *ReportStatsRepository) ClassSubjectStats(ctx context.Context, className, schoolYear, semester string) ([]models.ClassSubjectStats, error) {
	const query = `SELECT subject_name, class_avg, min_avg, max_avg FROM get_class_subject_stats($1, $2, $3)`
	var stats []models.ClassSubjectStats
	if err := r.db.SelectContext(ctx, &stats, query, className, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("get class subject stats: %w", err)
	}
	return stats, nil
}
