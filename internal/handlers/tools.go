package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-agent-wallet/internal/middleware"
	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/tools"
	"solana-agent-wallet/pkg/logger"
	"solana-agent-wallet/pkg/metrics"
)

// ToolsHandler dispatches agent tool calls to the tool service
type ToolsHandler struct {
	tools     *tools.Service
	collector *metrics.Collector
}

// NewToolsHandler creates a new tools handler
func NewToolsHandler(toolService *tools.Service, collector *metrics.Collector) *ToolsHandler {
	return &ToolsHandler{
		tools:     toolService,
		collector: collector,
	}
}

// ToolRequest carries the arguments of a tool call. Fields not used by
// the named tool are ignored.
type ToolRequest struct {
	RecipientAddress string  `json:"recipient_address"`
	Amount           float64 `json:"amount"`
	Memo             string  `json:"memo"`
	TransactionID    string  `json:"transaction_id"`
	Limit            int     `json:"limit"`
}

// ToolResponse wraps the plain-text tool output
type ToolResponse struct {
	Text string `json:"text"`
}

// Dispatch handles POST /api/tools/:name requests
func (h *ToolsHandler) Dispatch(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.GetLogger().WithContext(ctx)

	name := c.Param("name")
	actorID := middleware.ActorID(c)

	var req ToolRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := models.NewAppErrorWithDetails(
				models.ErrorCodeMalformedJSON,
				"Invalid JSON format",
				err.Error(),
			)
			models.HandleError(c, appErr, log)
			return
		}
	}

	h.collector.RecordToolCall(name)

	var result *tools.Result
	var err error

	switch name {
	case "get_balance":
		result, err = h.tools.GetBalance(ctx, actorID)
	case "estimate_fee":
		result, err = h.tools.EstimateFee(ctx, actorID)
	case "transfer_sol":
		result, err = h.tools.TransferSOL(ctx, actorID, req.RecipientAddress, req.Amount, req.Memo)
	case "check_transaction":
		result, err = h.tools.CheckTransaction(ctx, actorID, req.TransactionID)
	case "get_transaction_history":
		result, err = h.tools.GetTransactionHistory(ctx, actorID, req.Limit)
	default:
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "UNKNOWN_TOOL",
				"message": "Unknown tool: " + name,
			},
		})
		return
	}

	if err != nil {
		h.collector.RecordToolError()
		log.Warn("Tool call failed",
			zap.String("tool", name),
			zap.Error(err),
		)
		models.HandleError(c, err, log)
		return
	}

	c.JSON(http.StatusOK, ToolResponse{Text: result.Text})
}
