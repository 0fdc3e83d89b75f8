package main

import (
	"github.com/gin-gonic/gin"

	"voicedesk/internal/httpapi"
	"voicedesk/internal/rbac"
	"voicedesk/internal/telephony"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, api httpapi.Handlers, webhook telephony.StatusWebhookHandler) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: This endpoint should be protected by provider signature validation in production.
	r.POST("/webhooks/voice/status", webhook.HandleStatusCallback)

	// protected API group
	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	v1.POST("/auth/login", api.Login)

	authed := v1.Group("")
	authed.Use(authMW)
	{
		// CALLS routes
		calls := authed.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSuperAdmin))
		{
			calls.POST("", api.CreateCall)
			calls.GET("/:call_id", api.GetCall)
			calls.PATCH("/:call_id/status", api.UpdateCallStatus)
			calls.POST("/:call_id/complete", api.CompleteCall)
		}

		// Deletion is destructive and restricted to owners.
		authed.DELETE("/calls/:call_id",
			rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin),
			api.DeleteCall)

		// AGENT reporting routes
		agents := authed.Group("/agents")
		agents.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			agents.GET("/:agent_id/stats", api.AgentStats)
			agents.GET("/:agent_id/calls", api.AgentCallHistory)
		}
	}
}
