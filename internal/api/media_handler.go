package api

import (
	"net/http"

	"regulie/therapy-app/internal/service"
	"regulie/therapy-app/internal/storage"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MediaHandler struct {
	mediaService service.MediaService
}

func NewMediaHandler(mediaService service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

type UploadURLRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

type ConfirmUploadRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	ObjectKey   string `json:"objectKey" binding:"required"`
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType"`
}

// RequestUploadURL returns a presigned PUT URL the browser uploads to directly.
// POST /api/media/upload-url
func (h *MediaHandler) RequestUploadURL(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req UploadURLRequest
	if !bindJSON(c, &req) {
		return
	}
	sessionID, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid sessionId format")
		return
	}

	ticket, err := h.mediaService.RequestUpload(c.Request.Context(), therapistID, service.UploadRequest{
		SessionID:   sessionID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ConfirmUpload records metadata for an object uploaded with a presigned URL.
// POST /api/media
func (h *MediaHandler) ConfirmUpload(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if !bindJSON(c, &req) {
		return
	}
	sessionID, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid sessionId format")
		return
	}

	media, err := h.mediaService.Confirm(c.Request.Context(), therapistID, service.ConfirmUpload{
		SessionID:   sessionID,
		ObjectKey:   req.ObjectKey,
		FileName:    req.FileName,
		ContentType: req.ContentType,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, media)
}

// GetDownloadURL is open to the owning therapist and to linked parents of shared sessions.
// GET /api/media/:mediaId/url
func (h *MediaHandler) GetDownloadURL(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	role, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user")
		return
	}
	mediaID, ok := pathID(c, "mediaId")
	if !ok {
		return
	}

	url, err := h.mediaService.DownloadURL(c.Request.Context(), service.Viewer{UserID: userID, Role: role}, mediaID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       url,
		"expiresIn": int(storage.DefaultPresignedURLExpiry.Seconds()),
	})
}

// DELETE /api/media/:mediaId
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	mediaID, ok := pathID(c, "mediaId")
	if !ok {
		return
	}

	if err := h.mediaService.Delete(c.Request.Context(), therapistID, mediaID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
