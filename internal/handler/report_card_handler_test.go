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

type reportCardServiceMock struct {
	actor      models.ActorContext
	generate   dto.GenerateReportCardRequest
	filter     models.ReportCardFilter
	card       *models.ReportCard
	err        error
	pdf        *dto.ReportCardPDFResponse
	bulk       *dto.BulkReportCardPDFResponse
	bulkReq    dto.BulkReportCardPDFRequest
	deletedID  string
	finalizeID string
}

func (m *reportCardServiceMock) Generate(_ context.Context, actor models.ActorContext, req dto.GenerateReportCardRequest) (*models.ReportCard, error) {
	m.actor, m.generate = actor, req
	return m.card, m.err
}

func (m *reportCardServiceMock) Get(context.Context, string) (*models.ReportCard, error) {
	return m.card, m.err
}

func (m *reportCardServiceMock) List(_ context.Context, filter models.ReportCardFilter) ([]models.ReportCard, *models.Pagination, error) {
	m.filter = filter
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.ReportCard{*m.card}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *reportCardServiceMock) UpdateEdits(_ context.Context, actor models.ActorContext, _ string, _ dto.UpdateReportCardEditsRequest) (*models.ReportCard, error) {
	m.actor = actor
	return m.card, m.err
}

func (m *reportCardServiceMock) Finalize(_ context.Context, _ models.ActorContext, id string) (*models.ReportCard, error) {
	m.finalizeID = id
	return m.card, m.err
}

func (m *reportCardServiceMock) Delete(_ context.Context, _ models.ActorContext, id string) error {
	m.deletedID = id
	return m.err
}

func (m *reportCardServiceMock) GeneratePDF(context.Context, models.ActorContext, string) (*dto.ReportCardPDFResponse, error) {
	return m.pdf, m.err
}

func (m *reportCardServiceMock) BulkGeneratePDF(_ context.Context, _ models.ActorContext, req dto.BulkReportCardPDFRequest) (*dto.BulkReportCardPDFResponse, error) {
	m.bulkReq = req
	return m.bulk, m.err
}

func TestReportCardHandlerGenerate(t *testing.T) {
	svc := &reportCardServiceMock{card: &models.ReportCard{ID: "rc-1", Status: models.ReportCardDraft}}
	handler := NewReportCardHandler(svc)

	payload, _ := json.Marshal(dto.GenerateReportCardRequest{StudentID: "st-1", SchoolYear: "2024-2025", Semester: "S1"})
	c, w := newGinContext(http.MethodPost, "/report-cards/generate", payload)
	withUser(c, "sec-1", models.RoleSecretary)

	handler.Generate(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "st-1", svc.generate.StudentID)
	assert.Equal(t, "sec-1", svc.actor.UserID)
	assert.True(t, svc.actor.HasRole(models.RoleSecretary))

	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rc-1", body.Data.ID)
}

func TestReportCardHandlerRequiresClaims(t *testing.T) {
	handler := NewReportCardHandler(&reportCardServiceMock{})
	c, w := newGinContext(http.MethodPost, "/report-cards/rc-1/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: "rc-1"}}

	handler.Finalize(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportCardHandlerMapsServiceErrors(t *testing.T) {
	svc := &reportCardServiceMock{err: appErrors.Clone(appErrors.ErrFinalized, "report card is finalized")}
	handler := NewReportCardHandler(svc)

	c, w := newGinContext(http.MethodPost, "/report-cards/rc-1/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: "rc-1"}}
	withUser(c, "admin", models.RoleAdmin)
	handler.Finalize(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "rc-1", svc.finalizeID)

	svc.err = appErrors.Clone(appErrors.ErrRenderFailed, "render failed")
	c, w = newGinContext(http.MethodPost, "/report-cards/rc-1/pdf", nil)
	withUser(c, "admin", models.RoleAdmin)
	handler.GeneratePDF(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestReportCardHandlerListParsesQuery(t *testing.T) {
	svc := &reportCardServiceMock{card: &models.ReportCard{ID: "rc-1"}}
	handler := NewReportCardHandler(svc)

	c, w := newGinContext(http.MethodGet, "/report-cards?className=6A&status=finalized&page=2&limit=5", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "6A", svc.filter.ClassName)
	assert.Equal(t, models.ReportCardStatus("finalized"), svc.filter.Status)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)
}

func TestReportCardHandlerBulkAndDelete(t *testing.T) {
	svc := &reportCardServiceMock{bulk: &dto.BulkReportCardPDFResponse{Total: 2, Succeeded: 2}}
	handler := NewReportCardHandler(svc)

	c, w := newGinContext(http.MethodPost, "/report-cards/pdf/bulk", []byte(`{"ids":["a","b"]}`))
	withUser(c, "admin", models.RoleAdmin)
	handler.BulkGeneratePDF(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b"}, svc.bulkReq.IDs)

	c, w = newGinContext(http.MethodPost, "/report-cards/pdf/bulk", []byte(`{bad json`))
	withUser(c, "admin", models.RoleAdmin)
	handler.BulkGeneratePDF(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodDelete, "/report-cards/rc-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "rc-9"}}
	withUser(c, "admin", models.RoleAdmin)
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "rc-9", svc.deletedID)
}
