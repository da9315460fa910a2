package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradeflow-api/internal/dto"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
	"github.com/noah-isme/gradeflow-api/pkg/response"
)

type reportCardService interface {
	Generate(ctx context.Context, actor models.ActorContext, req dto.GenerateReportCardRequest) (*models.ReportCard, error)
	Get(ctx context.Context, id string) (*models.ReportCard, error)
	List(ctx context.Context, filter models.ReportCardFilter) ([]models.ReportCard, *models.Pagination, error)
	UpdateEdits(ctx context.Context, actor models.ActorContext, id string, req dto.UpdateReportCardEditsRequest) (*models.ReportCard, error)
	Finalize(ctx context.Context, actor models.ActorContext, id string) (*models.ReportCard, error)
	Delete(ctx context.Context, actor models.ActorContext, id string) error
	GeneratePDF(ctx context.Context, actor models.ActorContext, id string) (*dto.ReportCardPDFResponse, error)
	BulkGeneratePDF(ctx context.Context, actor models.ActorContext, req dto.BulkReportCardPDFRequest) (*dto.BulkReportCardPDFResponse, error)
}

// ReportCardHandler exposes report card endpoints.
type ReportCardHandler struct {
	cards reportCardService
}

// NewReportCardHandler constructs ReportCardHandler.
func NewReportCardHandler(cards reportCardService) *ReportCardHandler {
	return &ReportCardHandler{cards: cards}
}

// Generate godoc
// @Summary Generate or regenerate a report card
// @Description Aggregates the student's grades for the period and upserts the draft report card
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param payload body dto.GenerateReportCardRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /report-cards/generate [post]
func (h *ReportCardHandler) Generate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.GenerateReportCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	card, err := h.cards.Generate(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, card)
}

// List godoc
// @Summary List report cards
// @Tags ReportCards
// @Produce json
// @Param studentId query string false "Student ID"
// @Param className query string false "Class name"
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester"
// @Param status query string false "draft or finalized"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /report-cards [get]
func (h *ReportCardHandler) List(c *gin.Context) {
	filter := models.ReportCardFilter{
		StudentID:  c.Query("studentId"),
		ClassName:  c.Query("className"),
		SchoolYear: c.Query("schoolYear"),
		Semester:   c.Query("semester"),
		Status:     models.ReportCardStatus(c.Query("status")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "limit", 20),
	}
	cards, pagination, err := h.cards.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, pagination)
}

// Get godoc
// @Summary Get report card
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/{id} [get]
func (h *ReportCardHandler) Get(c *gin.Context) {
	card, err := h.cards.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// UpdateEdits godoc
// @Summary Save manual corrections
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param id path string true "Report card ID"
// @Param payload body dto.UpdateReportCardEditsRequest true "Edited document"
// @Success 200 {object} response.Envelope
// @Router /report-cards/{id}/edits [put]
func (h *ReportCardHandler) UpdateEdits(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateReportCardEditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	card, err := h.cards.UpdateEdits(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Finalize godoc
// @Summary Finalize report card
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/{id}/finalize [post]
func (h *ReportCardHandler) Finalize(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	card, err := h.cards.Finalize(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Delete godoc
// @Summary Delete report card
// @Tags ReportCards
// @Param id path string true "Report card ID"
// @Success 204
// @Router /report-cards/{id} [delete]
func (h *ReportCardHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.cards.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GeneratePDF godoc
// @Summary Render and store the report card PDF
// @Tags ReportCards
// @Produce json
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /report-cards/{id}/pdf [post]
func (h *ReportCardHandler) GeneratePDF(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	res, err := h.cards.GeneratePDF(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// BulkGeneratePDF godoc
// @Summary Render several report card PDFs
// @Description Processes ids in small concurrent batches; failures are reported per id
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param payload body dto.BulkReportCardPDFRequest true "Report card ids"
// @Success 200 {object} response.Envelope
// @Router /report-cards/pdf/bulk [post]
func (h *ReportCardHandler) BulkGeneratePDF(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkReportCardPDFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	res, err := h.cards.BulkGeneratePDF(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
