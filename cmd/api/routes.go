package main

import (
	"med-reminder/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
// authMW may be nil when service auth is not configured.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	r.GET("/health", h.Health)

	calls := r.Group("/")
	if authMW != nil {
		calls.Use(authMW)
	}
	calls.POST("/call-reminder", h.CallReminder)
	calls.POST("/call-buy", h.CallBuy)
	calls.GET("/calls/summary", h.CallsSummary)
}
