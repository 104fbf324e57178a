package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tvicl/server/internal/services"
	"tvicl/server/internal/storage"
)

// MediaQueue schedules normalisation of an uploaded object.
type MediaQueue interface {
	EnqueueMediaProcess(ctx context.Context, key string) error
}

// UploadHandler hands out presigned S3 upload URLs and queues post-upload processing.
type UploadHandler struct {
	storage storage.IS3Storage
	media   MediaQueue
}

func NewUploadHandler(storage storage.IS3Storage, media MediaQueue) *UploadHandler {
	return &UploadHandler{storage: storage, media: media}
}

type presignRequest struct {
	Filename    string `json:"filename" validate:"required,max=200"`
	ContentType string `json:"contentType" validate:"required"`
}

// Presign handles POST /api/uploads/presign
func (h *UploadHandler) Presign(c *gin.Context) {
	var req presignRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := services.ValidateRequest(&req); err != nil {
		respondError(c, err)
		return
	}
	upload, err := h.storage.GeneratePresignedPutURL(c.Request.Context(), mustUserID(c), req.Filename, req.ContentType)
	if errors.Is(err, storage.ErrUnsupportedContentType) {
		respondError(c, &services.ValidationError{Violations: []services.FieldViolation{{Field: "contentType", Message: "must be one of: image/jpeg, image/png, video/mp4, application/pdf"}}})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

// Process handles POST /api/uploads/process. Callers may only process their own uploads.
func (h *UploadHandler) Process(c *gin.Context) {
	var req struct {
		Key string `json:"key"`
	}
	if !bindJSON(c, &req) {
		return
	}
	prefix := fmt.Sprintf("uploads/%s/", mustUserID(c))
	if !strings.HasPrefix(req.Key, prefix) || strings.Contains(req.Key, "..") {
		respondError(c, ErrForbidden)
		return
	}
	if err := h.media.EnqueueMediaProcess(c.Request.Context(), req.Key); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Processing queued", "key": req.Key, "url": h.storage.PublicURL(req.Key)})
}
