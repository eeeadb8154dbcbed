package authz

import (
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"github.com/gin-gonic/gin"
)

// RequirePermission rejects callers whose role lacks obj/act with 403.
// Must run after the auth middleware.
func (e *Enforcer) RequirePermission(obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(util.ContextUserKey); !exists {
			util.RespondUnauthorized(c)
			return
		}

		if !e.Can(util.GetRoleFromContext(c), obj, act) {
			util.RespondForbidden(c, "insufficient permissions")
			return
		}
		c.Next()
	}
}
