package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/service"
)

type DocumentManager interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (*service.UploadResult, error)
	List(ctx context.Context, ownerID string) ([]*model.DocumentSource, error)
	Delete(ctx context.Context, ownerID, filename string) error
}

type DocumentHandler struct {
	documents      DocumentManager
	maxUploadBytes int64
}

func NewDocumentHandler(documents DocumentManager, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &DocumentHandler{documents: documents, maxUploadBytes: maxUploadBytes}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if file.Size > h.maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxUploadBytes))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(io.LimitReader(opened, h.maxUploadBytes+1))
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxUploadBytes))
		return
	}
	result, err := h.documents.Upload(c.Request.Context(), getOwnerID(c), file.Filename, file.Header.Get("Content-Type"), data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	items, err := h.documents.List(c.Request.Context(), getOwnerID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": items})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getOwnerID(c), c.Param("source")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"source": c.Param("source")})
}
