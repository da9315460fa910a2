package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, program_id, created_at FROM classes WHERE id = $1")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "program_id", "created_at"}).AddRow("c-1", "6A", "p-1", time.Now()))

	class, err := repo.FindByID(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "6A", class.Name)
	require.NotNil(t, class.ProgramID)
	assert.Equal(t, "p-1", *class.ProgramID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryProgramNameFallsThroughNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.id = $1")).
		WithArgs("c-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.name = $1")).
		WithArgs("6A").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Collège"))

	_, err := repo.ProgramNameByClassID(context.Background(), "c-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	name, err := repo.ProgramNameByClassName(context.Background(), "6A")
	require.NoError(t, err)
	assert.Equal(t, "Collège", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, created_at FROM subjects WHERE id = $1")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "created_at"}).AddRow("s-1", "MATH", "Maths", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE id = $1")).
		WithArgs("s-2").
		WillReturnError(sql.ErrNoRows)

	subject, err := repo.FindByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Maths", subject.Name)

	_, err = repo.FindByID(context.Background(), "s-2")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
