package util

import (
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "user_role"
)

// GetUserFromContext extracts the authenticated user from the Gin context.
// If the user is not authenticated, it responds with 401 and returns false.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		RespondUnauthorized(c)
		return nil, false
	}
	user, ok := value.(*models.User)
	if !ok || user == nil {
		RespondInternalError(c, "invalid user data in context")
		return nil, false
	}
	return user, true
}

// OptionalUser returns the authenticated user if there is one, without responding
func OptionalUser(c *gin.Context) *models.User {
	if value, exists := c.Get(ContextUserKey); exists {
		if user, ok := value.(*models.User); ok {
			return user
		}
	}
	return nil
}

// GetRoleFromContext returns the caller's role, member when unknown
func GetRoleFromContext(c *gin.Context) models.Role {
	if role, ok := c.Get(ContextRoleKey); ok {
		if r, ok := role.(models.Role); ok {
			return r
		}
	}
	return models.RoleMember
}
