package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradeflow-api/internal/dto"
	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
	"github.com/noah-isme/gradeflow-api/pkg/response"
)

type gradeService interface {
	List(ctx context.Context, actor models.ActorContext, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error)
	Create(ctx context.Context, actor models.ActorContext, req dto.CreateGradeRequest) (*models.Grade, error)
	BulkCreate(ctx context.Context, actor models.ActorContext, req dto.BulkCreateGradesRequest) ([]models.Grade, error)
	Update(ctx context.Context, actor models.ActorContext, id string, req dto.UpdateGradeRequest) (*models.Grade, error)
	Delete(ctx context.Context, actor models.ActorContext, id string, hard bool) error
}

// GradeHandler exposes grade entry endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Param studentId query string false "Student ID"
// @Param classId query string false "Class ID"
// @Param className query string false "Class name"
// @Param subjectId query string false "Subject ID"
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.GradeFilter{
		StudentID:  c.Query("studentId"),
		ClassID:    c.Query("classId"),
		ClassName:  c.Query("className"),
		SubjectID:  c.Query("subjectId"),
		TeacherID:  c.Query("teacherId"),
		SchoolYear: c.Query("schoolYear"),
		Semester:   c.Query("semester"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "limit", 50),
	}
	grades, pagination, err := h.grades.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Create godoc
// @Summary Create grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.CreateGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// BulkCreate godoc
// @Summary Create several grades atomically
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.BulkCreateGradesRequest true "Grades payload"
// @Success 201 {object} response.Envelope
// @Router /grades/bulk [post]
func (h *GradeHandler) BulkCreate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkCreateGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grades, err := h.grades.BulkCreate(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grades)
}

// Update godoc
// @Summary Update grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body dto.UpdateGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete godoc
// @Summary Delete grade
// @Description Soft deletes by default; hard=true removes the row (admin only)
// @Tags Grades
// @Param id path string true "Grade ID"
// @Param hard query bool false "Hard delete"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	hard, _ := strconv.ParseBool(c.Query("hard"))
	if err := h.grades.Delete(c.Request.Context(), actor, c.Param("id"), hard); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
