package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-routing/internal/auth"
)

// RequireWorkspaceParam enforces tenancy: the token's workspace must equal the
// workspace in the named path parameter. Super admins may act on any workspace.
func RequireWorkspaceParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "identity required"})
			return
		}
		target := c.Param(param)
		if target == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": param + " required"})
			return
		}
		if !IsSuperAdmin(id.Role) && id.WorkspaceID != target {
			// Same answer as a missing workspace so ids cannot be probed.
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "workspace not found"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows the request if the caller has one of allowed. super_admin always passes.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c.Request.Context())
		if !ok || id.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "role required"})
			return
		}
		if IsSuperAdmin(id.Role) {
			c.Next()
			return
		}
		if _, ok := set[id.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
			return
		}
		c.Next()
	}
}
