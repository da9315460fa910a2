package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradeflow-api/internal/models"
	"github.com/noah-isme/gradeflow-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, actor models.ActorContext, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audit auditService
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit auditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Param userId query string false "User ID"
// @Param action query string false "Action"
// @Param resource query string false "Resource"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.AuditLogFilter{
		UserID:   c.Query("userId"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	logs, pagination, err := h.audit.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
