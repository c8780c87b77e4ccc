package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voice-routing/internal/audit"
	"voice-routing/internal/auth"
	"voice-routing/internal/rbac"
	"voice-routing/internal/workspace"
	"voice-routing/pkg/logger"
)

// Handlers serves the admin API. Tenancy and roles are enforced by middleware
// in front of these; handlers only parse, call the store and render JSON.
type Handlers struct {
	Agents workspace.AgentAdmin
	Audit  *audit.Service
}

type routingAgentsBody struct {
	RoutingAgents []workspace.RoutingAgent `json:"routing_agents"`
}

func (h Handlers) ListRoutingAgents(c *gin.Context) {
	if h.Agents == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "workspace store not configured"})
		return
	}
	userID, ok := workspaceOwner(c)
	if !ok {
		return
	}
	agents, err := h.Agents.ListRoutingAgents(c.Request.Context(), userID, c.Param("workspace_id"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	if agents == nil {
		agents = []workspace.RoutingAgent{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "routing_agents": agents})
}

// ReplaceRoutingAgents swaps the whole list. Routing reads it fresh on every call.
func (h Handlers) ReplaceRoutingAgents(c *gin.Context) {
	if h.Agents == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "workspace store not configured"})
		return
	}
	userID, ok := workspaceOwner(c)
	if !ok {
		return
	}
	var body routingAgentsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}

	workspaceID := c.Param("workspace_id")
	if err := h.Agents.ReplaceRoutingAgents(c.Request.Context(), userID, workspaceID, body.RoutingAgents); err != nil {
		h.storeError(c, err)
		return
	}

	if h.Audit != nil {
		id, _ := auth.IdentityFrom(c.Request.Context())
		meta, _ := json.Marshal(map[string]int{"count": len(body.RoutingAgents)})
		if err := h.Audit.LogAdminAction(c.Request.Context(), workspaceID, id.UserID, id.Role, c.ClientIP(),
			"routing agents replaced", string(meta)); err != nil {
			logger.FromGin(c).Warn("admin: audit append failed", "err", err)
		}
	}

	if body.RoutingAgents == nil {
		body.RoutingAgents = []workspace.RoutingAgent{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "routing_agents": body.RoutingAgents})
}

// workspaceOwner returns the user that owns the addressed workspace. Workspaces are
// keyed by (user_id, workspace_id), so owners act on their own; super admins name
// the owner with ?user_id=.
func workspaceOwner(c *gin.Context) (string, bool) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "identity required"})
		return "", false
	}
	if !rbac.IsSuperAdmin(id.Role) {
		return id.UserID, true
	}
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "user_id query parameter required"})
		return "", false
	}
	return userID, true
}

func (h Handlers) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "workspace not found"})
	case errors.Is(err, workspace.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		logger.FromGin(c).Error("admin: workspace store failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}
