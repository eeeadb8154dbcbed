package auth

import (
	"errors"
	"strings"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
)

// BearerToken extracts the token from "Authorization: Bearer ...", falling
// back to ?token= when allowQuery is set (browsers cannot set headers on
// websocket upgrades).
func BearerToken(c *gin.Context, allowQuery bool) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return ""
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// Middleware requires a valid access token and an active account
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c, false)
		if token == "" {
			util.RespondUnauthorized(c, "missing bearer token")
			return
		}

		user, err := s.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				util.RespondUnauthorized(c, "token expired")
			case errors.Is(err, ErrInvalidToken):
				util.RespondUnauthorized(c, "invalid token")
			default:
				util.RespondInternalError(c, "failed to authenticate")
			}
			return
		}

		if !user.IsActive() {
			util.RespondForbidden(c, "account is "+string(user.Status))
			return
		}

		c.Set(util.ContextUserKey, user)
		c.Set(util.ContextUserIDKey, user.ID)
		c.Set(util.ContextRoleKey, user.Role)
		c.Next()
	}
}

// TokenSubject returns the user id of a valid bearer token without loading
// the user, or "" when the request carries no usable token
func (s *Service) TokenSubject(c *gin.Context) string {
	token := BearerToken(c, false)
	if token == "" {
		return ""
	}
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		return ""
	}
	return claims.UserID
}

// OptionalMiddleware attaches the user when a valid token is present and
// lets anonymous requests through otherwise
func (s *Service) OptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c, false); token != "" {
			if user, err := s.Authenticate(c.Request.Context(), token); err == nil && user.IsActive() {
				c.Set(util.ContextUserKey, user)
				c.Set(util.ContextUserIDKey, user.ID)
				c.Set(util.ContextRoleKey, user.Role)
			}
		}
		c.Next()
	}
}
