package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chronicle-chat/backend/internal/models"
	"chronicle-chat/backend/internal/store"
	"chronicle-chat/backend/pkg/errors"
	"chronicle-chat/backend/pkg/logger"
)

// CharacterHandler serves character profile reads and partial updates
// outside the live chat connection.
type CharacterHandler struct {
	profiles *store.ProfileStore
	logger   *logger.Logger
}

func NewCharacterHandler(profiles *store.ProfileStore, logger *logger.Logger) *CharacterHandler {
	return &CharacterHandler{profiles: profiles, logger: logger}
}

// Get handles GET /character/:name.
func (h *CharacterHandler) Get(c *gin.Context) {
	name := c.Param("name")
	profile, ok := h.profiles.Get(name)
	if !ok {
		c.Error(errors.NewNotFoundError("CHARACTER_NOT_FOUND", "character not found"))
		return
	}
	c.JSON(http.StatusOK, profile)
}

type characterUpdateRequest struct {
	Avatar      *string `json:"avatar"`
	Description *string `json:"description"`
	Sheet       *string `json:"sheet"`
}

// Update handles POST /character/:name. Absent fields are left untouched,
// so clients can save the sheet without resending the avatar.
func (h *CharacterHandler) Update(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Error(errors.NewBadRequestError("INVALID_CHARACTER", "character name is required"))
		return
	}

	var req characterUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_CHARACTER", "invalid character payload"))
		return
	}

	profile, err := h.profiles.Upsert(name, models.ProfileUpdate{
		Avatar:      req.Avatar,
		Description: req.Description,
		Sheet:       req.Sheet,
	})
	if err != nil {
		h.logger.LogError(err, "persist character", "character", name)
		c.Error(errors.NewInternalServerError("CHARACTER_SAVE_FAILED", "character update failed"))
		return
	}

	c.JSON(http.StatusOK, profile)
}
