package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/dto"
	apperrors "github.com/Avishekdevnath/KhoshGolpo-sub001/internal/errors"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/storage"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the avatar itself
const avatarFormOverhead = 64 << 10

// GetUserProfile returns a public profile by username
func (h *Handlers) GetUserProfile(c *gin.Context) {
	user, err := h.users.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if errors.Is(err, repository.ErrUserNotFound) {
		util.RespondNotFound(c, "user")
		return
	}
	if err != nil {
		logger.ErrorWithFields("Failed to load user", err)
		util.RespondInternalError(c, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.ToUserPublic(user)})
}

// UpdateMyProfile applies a partial profile update.
// PATCH /users/me
func (h *Handlers) UpdateMyProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		if trimmed == "" {
			util.RespondValidationError(c, "display_name", "must be at least 1 characters")
			return
		}
		req.DisplayName = &trimmed
	}
	if req.AvatarURL != nil && *req.AvatarURL != "" {
		if err := util.ValidateHTTPURL(*req.AvatarURL); err != nil {
			util.RespondValidationError(c, "avatar_url", err.Error())
			return
		}
	}

	fields := req.Fields()
	if len(fields) == 0 {
		c.JSON(http.StatusOK, gin.H{"user": dto.ToUserPrivate(user)})
		return
	}

	h.saveProfile(c, user.ID, fields)
}

// UploadAvatar stores a profile picture and points avatar_url at it.
// POST /users/me/avatar (multipart field "avatar")
func (h *Handlers) UploadAvatar(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if h.avatars == nil {
		util.RespondWithAPIError(c, apperrors.ServiceUnavailable("avatar storage"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, util.MaxAvatarSize+avatarFormOverhead)
	header, err := c.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			util.RespondValidationError(c, "avatar", fmt.Sprintf("must be at most %dMB", util.MaxAvatarSize>>20))
			return
		}
		util.RespondValidationError(c, "avatar", "is required")
		return
	}
	if header.Size > util.MaxAvatarSize {
		util.RespondValidationError(c, "avatar", fmt.Sprintf("must be at most %dMB", util.MaxAvatarSize>>20))
		return
	}
	if _, ok := util.AvatarContentType(header.Filename); !ok {
		util.RespondValidationError(c, "avatar", "must be a jpg, png, gif or webp image")
		return
	}

	file, err := header.Open()
	if err != nil {
		util.RespondBadRequest(c, "failed to read upload")
		return
	}
	defer file.Close()

	result, err := h.avatars.UploadAvatar(c.Request.Context(), file, header.Size, header.Filename, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			util.RespondValidationError(c, "avatar", "must be a jpg, png, gif or webp image")
		case errors.Is(err, storage.ErrTooLarge):
			util.RespondValidationError(c, "avatar", fmt.Sprintf("must be at most %dMB", util.MaxAvatarSize>>20))
		default:
			logger.ErrorWithFields("Avatar upload failed", err, logger.WithUserID(user.ID))
			util.RespondWithAPIError(c, apperrors.ServiceUnavailable("avatar storage"))
		}
		return
	}

	logger.Log.Info("Avatar uploaded", logger.WithUserID(user.ID), zap.String("key", result.Key))
	h.saveProfile(c, user.ID, map[string]interface{}{"avatar_url": result.URL})
}

func (h *Handlers) saveProfile(c *gin.Context, userID string, fields map[string]interface{}) {
	ctx := c.Request.Context()
	if err := h.users.UpdateFields(ctx, userID, fields); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			util.RespondNotFound(c, "user")
			return
		}
		logger.ErrorWithFields("Failed to update profile", err, logger.WithUserID(userID))
		util.RespondInternalError(c, "failed to update profile")
		return
	}

	updated, err := h.users.GetUser(ctx, userID)
	if err != nil {
		util.RespondInternalError(c, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.ToUserPrivate(updated)})
}
