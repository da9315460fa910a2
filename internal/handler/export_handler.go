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

type exportService interface {
	ClassResults(ctx context.Context, actor models.ActorContext, req dto.ClassResultsExportRequest) (*models.ExportResult, error)
}

// ExportHandler exposes class result exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ClassResults godoc
// @Summary Export class results
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ClassResultsExportRequest true "Export payload"
// @Success 201 {object} response.Envelope
// @Router /exports/class-results [post]
func (h *ExportHandler) ClassResults(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ClassResultsExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.exports.ClassResults(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
