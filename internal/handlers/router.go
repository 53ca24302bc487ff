package handlers

import (
	"github.com/gin-gonic/gin"
)

// Router handles HTTP routing setup
type Router struct {
	connectHandler     *ConnectHandler
	transactionHandler *TransactionHandler
	toolsHandler       *ToolsHandler
	healthHandler      *HealthHandler
}

// NewRouter creates a new Router instance with all handlers
func NewRouter(connect *ConnectHandler, transaction *TransactionHandler, toolsHandler *ToolsHandler, health *HealthHandler) *Router {
	return &Router{
		connectHandler:     connect,
		transactionHandler: transaction,
		toolsHandler:       toolsHandler,
		healthHandler:      health,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		// Wallet binding flow used by the browser frontend
		api.POST("/connect", r.connectHandler.Connect)
		api.GET("/session/:token", r.connectHandler.ProbeToken)

		// Signing-page flow for pending transactions
		api.GET("/transaction/:txId", r.transactionHandler.Get)
		api.POST("/transaction/:txId/sign", r.transactionHandler.Sign)
		api.GET("/transaction/:txId/status", r.transactionHandler.Status)

		// Agent tool dispatch
		api.POST("/tools/:name", r.toolsHandler.Dispatch)
	}
}

// SetupHealthRoutes configures health check and status routes
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)
		health.GET("/live", r.healthHandler.GetLiveness)
		health.GET("/ready", r.healthHandler.GetReadiness)
		health.GET("/db", r.healthHandler.GetDatabaseHealth)
	}

	engine.GET("/metrics", r.healthHandler.GetMetrics)
	engine.GET("/status", r.healthHandler.GetStatus)
}
