package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/auth"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/dto"
	apperrors "github.com/Avishekdevnath/KhoshGolpo-sub001/internal/errors"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
)

type authResponse struct {
	AccessToken      string           `json:"access_token"`
	RefreshToken     string           `json:"refresh_token"`
	TokenType        string           `json:"token_type"`
	ExpiresAt        time.Time        `json:"expires_at"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
	User             *dto.UserPrivate `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func toAuthResponse(resp *auth.AuthResponse) authResponse {
	return authResponse{
		AccessToken:      resp.AccessToken,
		RefreshToken:     resp.RefreshToken,
		TokenType:        resp.TokenType,
		ExpiresAt:        resp.ExpiresAt,
		RefreshExpiresAt: resp.RefreshExpiresAt,
		User:             dto.ToUserPrivate(resp.User),
	}
}

func clientInfo(c *gin.Context) auth.ClientInfo {
	return auth.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Path:      c.Request.URL.Path,
	}
}

// respondAuthError maps auth service errors onto API errors
func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		apiErr := apperrors.Conflict("email already registered")
		apiErr.Field = "email"
		util.RespondWithAPIError(c, apiErr)
	case errors.Is(err, auth.ErrUsernameTaken):
		apiErr := apperrors.Conflict("username already taken")
		apiErr.Field = "username"
		util.RespondWithAPIError(c, apiErr)
	case errors.Is(err, auth.ErrInvalidUsername):
		util.RespondValidationError(c, "username", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		util.RespondUnauthorized(c, "invalid credentials")
	case errors.Is(err, auth.ErrAccountDisabled):
		util.RespondForbidden(c, "account is suspended or banned")
	case errors.Is(err, auth.ErrRefreshReuse):
		util.RespondUnauthorized(c, "refresh token reuse detected, all sessions revoked")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		util.RespondUnauthorized(c, "invalid refresh token")
	default:
		util.RespondError(c, err)
	}
}

// Register creates an account and returns a token pair
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthResponse(resp))
}

// Login accepts an email or username plus password
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(resp))
}

// Refresh rotates the refresh token
func (h *Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(resp))
}

// Logout revokes the presented refresh token
func (h *Handlers) Logout(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		util.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the caller's private profile
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.ToUserPrivate(user)})
}
