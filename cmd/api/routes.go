package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-routing/internal/audit"
	"voice-routing/internal/calls"
	"voice-routing/internal/httpapi"
	"voice-routing/internal/metrics"
	"voice-routing/internal/rbac"
	"voice-routing/internal/routing"
	"voice-routing/internal/telephony"
	"voice-routing/internal/workspace"
)

type dependencies struct {
	Workflow    *routing.Workflow
	Calls       *calls.Service
	AgentAdmin  workspace.AgentAdmin
	Audit       *audit.Service
	Metrics     *metrics.Metrics
	RequireAuth gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers. No business logic here.
func registerRoutes(r *gin.Engine, d dependencies) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	// Voice platform webhooks. Tenancy comes from the path (routing) or the agent id (call events).
	r.POST("/webhook/routing/:user_id/:workspace_id", telephony.RoutingWebhookHandler{Workflow: d.Workflow}.Handle)
	r.POST("/api/webhook", telephony.CallAnalyzedHandler{Calls: d.Calls, Counter: d.Metrics}.Handle)

	v1 := r.Group("/v1")
	v1.Use(d.RequireAuth)
	{
		h := httpapi.Handlers{Agents: d.AgentAdmin, Audit: d.Audit}

		ws := v1.Group("/workspaces/:workspace_id")
		ws.Use(rbac.RequireWorkspaceParam("workspace_id"))
		ws.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			ws.GET("/routing-agents", h.ListRoutingAgents)
			ws.PUT("/routing-agents", h.ReplaceRoutingAgents)
		}
	}
}
