package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
	"solana-agent-wallet/pkg/logger"
)

// ConnectHandler handles the wallet-binding endpoints used by the
// browser frontend.
type ConnectHandler struct {
	sessions *services.SessionService
}

// NewConnectHandler creates a new connect handler
func NewConnectHandler(sessions *services.SessionService) *ConnectHandler {
	return &ConnectHandler{sessions: sessions}
}

// ConnectRequest is the wallet-binding request body
type ConnectRequest struct {
	Token         string `json:"token" binding:"required"`
	WalletAddress string `json:"walletAddress" binding:"required"`
}

// ConnectResponse is returned after a successful wallet binding
type ConnectResponse struct {
	SessionID     string               `json:"sessionId"`
	WalletAddress string               `json:"walletAddress"`
	Status        models.SessionStatus `json:"status"`
	ConnectedAt   time.Time            `json:"connectedAt"`
}

// Connect handles POST /api/connect requests
func (h *ConnectHandler) Connect(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	if _, err := services.ValidateAddress(req.WalletAddress); err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeInvalidAddress,
			"Invalid wallet address.",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	session, err := h.sessions.LinkWallet(c.Request.Context(), req.Token, req.WalletAddress)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	log.Info("Wallet connected",
		zap.String("session_id", session.SessionID),
		zap.String("wallet_address", session.WalletAddress),
	)

	c.JSON(http.StatusOK, ConnectResponse{
		SessionID:     session.SessionID,
		WalletAddress: session.WalletAddress,
		Status:        session.Status,
		ConnectedAt:   session.LastUsedAt,
	})
}

// TokenProbeResponse describes the state of a connection token
type TokenProbeResponse struct {
	Valid     bool `json:"valid"`
	Connected bool `json:"connected"`
	Expired   bool `json:"expired"`
}

// ProbeToken handles GET /api/session/:token requests. The frontend
// calls it before rendering the connect page so an expired or used link
// shows a sensible message instead of a wallet prompt.
func (h *ConnectHandler) ProbeToken(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	session, err := h.sessions.SessionForToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	expired := session.Status == models.SessionStatusExpired ||
		(session.Status == models.SessionStatusPending && session.TokenElapsed(time.Now().UTC()))

	c.JSON(http.StatusOK, TokenProbeResponse{
		Valid:     session.Status == models.SessionStatusPending && !expired,
		Connected: session.WalletConnected(),
		Expired:   expired,
	})
}
