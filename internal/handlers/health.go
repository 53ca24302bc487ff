package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"solana-agent-wallet/internal/services"
	"solana-agent-wallet/pkg/metrics"
)

// HealthStatus represents the health state of a dependency
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the probe result for one dependency
type HealthCheck struct {
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// DatabasePinger is satisfied by *mongo.Client. It is nil when the
// service runs on in-memory stores.
type DatabasePinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// HealthHandler handles health check and runtime status endpoints
type HealthHandler struct {
	db        DatabasePinger
	gateway   services.Gateway
	collector *metrics.Collector
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db DatabasePinger, gateway services.Gateway, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{
		db:        db,
		gateway:   gateway,
		collector: collector,
		startedAt: time.Now().UTC(),
	}
}

const probeTimeout = 5 * time.Second

func (h *HealthHandler) checkDatabase(ctx context.Context) *HealthCheck {
	if h.db == nil {
		return &HealthCheck{Status: HealthStatusHealthy}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(probeCtx, readpref.Primary())
	check := &HealthCheck{
		Status:  HealthStatusHealthy,
		Latency: time.Since(start),
	}
	if err != nil {
		check.Status = HealthStatusUnhealthy
		check.Error = err.Error()
	}
	return check
}

func (h *HealthHandler) checkRPC(ctx context.Context) *HealthCheck {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := h.gateway.Health(probeCtx)
	check := &HealthCheck{
		Status:  HealthStatusHealthy,
		Latency: time.Since(start),
	}
	if err != nil {
		// The service still works for session and status flows while the
		// RPC endpoint recovers
		check.Status = HealthStatusDegraded
		check.Error = err.Error()
	}
	return check
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    HealthStatus            `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Services  map[string]*HealthCheck `json:"services"`
}

// GetHealth handles GET /health requests
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	checks := map[string]*HealthCheck{
		"database":   h.checkDatabase(ctx),
		"solana_rpc": h.checkRPC(ctx),
	}

	overall := HealthStatusHealthy
	for _, check := range checks {
		if check.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
			break
		}
		if check.Status == HealthStatusDegraded {
			overall = HealthStatusDegraded
		}
	}

	statusCode := http.StatusOK
	if overall == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Services:  checks,
	})
}

// GetLiveness handles GET /health/live requests
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// GetReadiness handles GET /health/ready requests. Readiness follows
// the database only; a degraded RPC endpoint should not pull the
// service out of rotation.
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	dbCheck := h.checkDatabase(c.Request.Context())
	if dbCheck.Status == HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"message":   "database not available",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}

// GetDatabaseHealth handles GET /health/db requests
func (h *HealthHandler) GetDatabaseHealth(c *gin.Context) {
	check := h.checkDatabase(c.Request.Context())

	statusCode := http.StatusOK
	if check.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, check)
}

// GetMetrics handles GET /metrics requests
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":          h.collector.GetMetrics(),
		"avg_rpc_duration": h.collector.AverageRPCDuration().String(),
		"timestamp":        time.Now().UTC(),
	})
}

// GetStatus handles GET /status requests
func (h *HealthHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "solana-agent-wallet",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC(),
	})
}
