package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradeflow-api/internal/service"
	"github.com/noah-isme/gradeflow-api/pkg/response"
)

type fileService interface {
	Download(ctx context.Context, token string) (*service.DownloadedFile, error)
}

// FileHandler serves files behind signed download tokens.
type FileHandler struct {
	files fileService
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(files fileService) *FileHandler {
	return &FileHandler{files: files}
}

// Download godoc
// @Summary Download a stored file
// @Tags Files
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	file, err := h.files.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
