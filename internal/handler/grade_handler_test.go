package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-api/internal/dto"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
)

type gradeServiceMock struct {
	filter  models.GradeFilter
	created dto.CreateGradeRequest
	bulk    dto.BulkCreateGradesRequest
	hard    bool
	err     error
}

func (m *gradeServiceMock) List(_ context.Context, _ models.ActorContext, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	m.filter = filter
	return []models.Grade{{ID: "g-1"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, m.err
}

func (m *gradeServiceMock) Create(_ context.Context, _ models.ActorContext, req dto.CreateGradeRequest) (*models.Grade, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Grade{ID: "g-1", Grade: req.Grade}, nil
}

func (m *gradeServiceMock) BulkCreate(_ context.Context, _ models.ActorContext, req dto.BulkCreateGradesRequest) ([]models.Grade, error) {
	m.bulk = req
	return make([]models.Grade, len(req.Grades)), m.err
}

func (m *gradeServiceMock) Update(context.Context, models.ActorContext, string, dto.UpdateGradeRequest) (*models.Grade, error) {
	return &models.Grade{ID: "g-1"}, m.err
}

func (m *gradeServiceMock) Delete(_ context.Context, _ models.ActorContext, _ string, hard bool) error {
	m.hard = hard
	return m.err
}

func TestGradeHandlerCreate(t *testing.T) {
	svc := &gradeServiceMock{}
	handler := NewGradeHandler(svc)

	payload, _ := json.Marshal(dto.CreateGradeRequest{StudentID: "st-1", SubjectID: "sub-1", ClassID: "c-1", SchoolYear: "2024-2025", Semester: "S1", AssessmentType: "exam", Grade: 14, MaxGrade: 20, Weighting: 2})
	c, w := newGinContext(http.MethodPost, "/grades", payload)
	withUser(c, "t-1", models.RoleTeacher)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 14.0, svc.created.Grade)
}

func TestGradeHandlerForbiddenFromService(t *testing.T) {
	svc := &gradeServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "not your grade")}
	handler := NewGradeHandler(svc)

	c, w := newGinContext(http.MethodPut, "/grades/g-1", []byte(`{"assessment_type":"exam","grade":10,"max_grade":20,"weighting":1}`))
	c.Params = gin.Params{{Key: "id", Value: "g-1"}}
	withUser(c, "t-2", models.RoleTeacher)

	handler.Update(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGradeHandlerListAndDelete(t *testing.T) {
	svc := &gradeServiceMock{}
	handler := NewGradeHandler(svc)

	c, w := newGinContext(http.MethodGet, "/grades?studentId=st-1&semester=S1&schoolYear=2024-2025", nil)
	withUser(c, "admin", models.RoleAdmin)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "st-1", svc.filter.StudentID)
	assert.Equal(t, "S1", svc.filter.Semester)
	assert.Equal(t, 50, svc.filter.PageSize)

	c, w = newGinContext(http.MethodDelete, "/grades/g-1?hard=true", nil)
	c.Params = gin.Params{{Key: "id", Value: "g-1"}}
	withUser(c, "admin", models.RoleAdmin)
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.hard)
}

func TestGradeHandlerBulkCreate(t *testing.T) {
	svc := &gradeServiceMock{}
	handler := NewGradeHandler(svc)

	c, w := newGinContext(http.MethodPost, "/grades/bulk", []byte(`{"grades":[{"student_id":"a"},{"student_id":"b"}]}`))
	withUser(c, "admin", models.RoleAdmin)
	handler.BulkCreate(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, svc.bulk.Grades, 2)
}
