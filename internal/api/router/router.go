package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/grow-sync/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))

	healthHandler := handler.NewHealthHandler(deps)

	// GET /health - liveness
	r.GET("/health", healthHandler.Health)

	// GET /ready - readiness, runs dependency checks
	r.GET("/ready", healthHandler.Ready)

	analyzeHandler := handler.NewAnalyzeHandler(deps)

	// POST /analyze - signed batch webhook
	r.POST("/analyze",
		RateLimitMiddleware(deps.RateLimit.RPS, deps.RateLimit.Burst, deps.RateLimit.BypassToken),
		analyzeHandler.Analyze,
	)

	// GET /sync-runs - ledger read, only when the ledger is enabled
	if deps.Runs != nil {
		r.GET("/sync-runs", handler.NewSyncRunHandler(deps).ListSyncRuns)
	}

	return r
}
