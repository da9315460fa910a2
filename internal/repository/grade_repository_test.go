package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var gradeRowColumns = []string{"id", "student_id", "subject_id", "subject", "class_id", "class_name", "school_year", "semester",
	"assessment_name", "assessment_type", "grade", "max_grade", "weighting", "appreciation", "teacher_id", "is_active",
	"deleted_at", "created_at", "updated_at"}

func TestGradeRepositoryListForStudentPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(gradeRowColumns).
		AddRow("g-1", "st-1", "sub-1", "Maths", "c-1", "3e A", "2024-2025", "S1", "Contrôle 1", "TEST", "15.00", "20.00", "2.00", "Bien", "t-1", true, nil, now, now).
		AddRow("g-2", "st-1", "sub-1", "Maths", "c-1", "3e A", "2024-2025", "S1", nil, "EXAM", "17.00", "20.00", "3.00", nil, nil, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE g.is_active = TRUE AND g.student_id = $1 AND g.school_year = $2 AND g.semester = $3")).
		WithArgs("st-1", "2024-2025", "S1").
		WillReturnRows(rows)

	grades, err := repo.ListForStudentPeriod(context.Background(), "st-1", "2024-2025", "S1")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, "Maths", grades[0].Subject)
	assert.Equal(t, 15.0, grades[0].Grade)
	assert.Equal(t, models.AssessmentExam, grades[1].AssessmentType)
	assert.Nil(t, grades[1].AssessmentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE g.is_active = TRUE AND g.student_id = $1 AND g.teacher_id = $2 ORDER BY g.created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs("st-1", "t-1").
		WillReturnRows(sqlmock.NewRows(gradeRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grades g")).
		WithArgs("st-1", "t-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	grades, total, err := repo.List(context.Background(), models.GradeFilter{StudentID: "st-1", TeacherID: "t-1"})
	require.NoError(t, err)
	assert.Empty(t, grades)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).WillReturnError(errors.New("check violation"))
	mock.ExpectRollback()

	err := repo.BulkCreate(context.Background(), []models.Grade{
		{StudentID: "st-1", SubjectID: "sub-1", ClassID: "c-1", AssessmentType: models.AssessmentQuiz, Grade: 10, MaxGrade: 20, Weighting: 1},
		{StudentID: "st-2", SubjectID: "sub-1", ClassID: "c-1", AssessmentType: models.AssessmentQuiz, Grade: 30, MaxGrade: 20, Weighting: 1},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).WillReturnResult(sqlmock.NewResult(1, 1))

	grade := &models.Grade{StudentID: "st-1", SubjectID: "sub-1", ClassID: "c-1", AssessmentType: models.AssessmentOral, Grade: 12, MaxGrade: 20, Weighting: 1}
	require.NoError(t, repo.Create(context.Background(), grade))
	assert.NotEmpty(t, grade.ID)
	assert.True(t, grade.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositorySoftDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grades SET is_active = FALSE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND is_active = TRUE")).
		WithArgs("g-404", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "g-404", at)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryFindWithDeletedIncludesInactive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("JOIN classes c ON c.id = g.class_id WHERE g.id = $1")).
		WithArgs("g-1").
		WillReturnRows(sqlmock.NewRows(gradeRowColumns).
			AddRow("g-1", "st-1", "sub-1", "Maths", "c-1", "3e A", "2024-2025", "S1", nil, "TEST", "12.00", "20.00", "1.00", nil, "t-1", false, now, now, now))

	grade, err := repo.FindWithDeleted(context.Background(), "g-1")
	require.NoError(t, err)
	assert.False(t, grade.IsActive)
	require.NotNil(t, grade.DeletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
