package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chronicle-chat/backend/internal/models"
	"chronicle-chat/backend/internal/store"
	"chronicle-chat/backend/pkg/errors"
	"chronicle-chat/backend/pkg/logger"
)

var (
	dataURLPrefix = regexp.MustCompile(`^data:[A-Za-z0-9.+/-]+;base64,`)
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
)

// UploadHandler accepts base64 file uploads and hands back a served URL.
// The chat core never sees the blob, only the URL.
type UploadHandler struct {
	profiles  *store.ProfileStore
	uploadDir string
	maxSize   int64
	logger    *logger.Logger
}

// NewUploadHandler creates the handler and ensures the upload directory exists.
func NewUploadHandler(profiles *store.ProfileStore, uploadDir string, maxSize int64, logger *logger.Logger) (*UploadHandler, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload directory: %w", err)
	}
	return &UploadHandler{
		profiles:  profiles,
		uploadDir: uploadDir,
		maxSize:   maxSize,
		logger:    logger,
	}, nil
}

type uploadRequest struct {
	File          string `json:"file" binding:"required"`
	Filename      string `json:"filename" binding:"required"`
	CharacterName string `json:"characterName"`
}

// Upload handles POST /upload. When the filename marks an avatar and a
// character name is supplied, the character's avatar is updated in place,
// matching the flow the client uses during profile creation.
func (h *UploadHandler) Upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_UPLOAD", "no file data provided"))
		return
	}

	data, err := base64.StdEncoding.DecodeString(dataURLPrefix.ReplaceAllString(req.File, ""))
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_UPLOAD", "file data is not valid base64"))
		return
	}
	if h.maxSize > 0 && int64(len(data)) > h.maxSize {
		c.Error(errors.NewBadRequestError("UPLOAD_TOO_LARGE", "file exceeds the upload size limit"))
		return
	}

	safeName := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeFilename(req.Filename))
	destPath := filepath.Join(h.uploadDir, safeName)
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		h.logger.LogError(err, "write upload", "path", destPath)
		c.Error(errors.NewInternalServerError("UPLOAD_FAILED", "file upload failed"))
		return
	}

	url := "/uploads/" + safeName
	if req.CharacterName != "" && strings.Contains(req.Filename, "avatar") {
		if _, err := h.profiles.Upsert(req.CharacterName, models.ProfileUpdate{Avatar: &url}); err != nil {
			h.logger.LogError(err, "persist avatar", "character", req.CharacterName)
			c.Error(errors.NewInternalServerError("UPLOAD_FAILED", "avatar update failed"))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"filename": safeName,
		"url":      url,
	})
}

func sanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(filepath.Base(name), "_")
}
