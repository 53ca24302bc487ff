package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
	"solana-agent-wallet/pkg/logger"
)

// TransactionHandler handles the signing-page endpoints for pending
// transactions.
type TransactionHandler struct {
	pending    *services.PendingTxService
	reconciler *services.Reconciler
	cluster    string
}

// NewTransactionHandler creates a new transaction handler. The RPC
// endpoint decides which cluster the explorer links point at.
func NewTransactionHandler(pending *services.PendingTxService, reconciler *services.Reconciler, rpcEndpoint string) *TransactionHandler {
	cluster := ""
	switch {
	case strings.Contains(rpcEndpoint, "devnet"):
		cluster = "devnet"
	case strings.Contains(rpcEndpoint, "testnet"):
		cluster = "testnet"
	}
	return &TransactionHandler{
		pending:    pending,
		reconciler: reconciler,
		cluster:    cluster,
	}
}

func (h *TransactionHandler) explorerURL(signature string) string {
	url := "https://explorer.solana.com/tx/" + signature
	if h.cluster != "" {
		url += "?cluster=" + h.cluster
	}
	return url
}

// PendingTransactionResponse is the record shown on the signing page
type PendingTransactionResponse struct {
	TxID                string                   `json:"txId"`
	Status              models.TransactionStatus `json:"status"`
	WalletAddress       string                   `json:"walletAddress"`
	RecipientAddress    string                   `json:"recipientAddress"`
	AmountSOL           float64                  `json:"amountSol"`
	Memo                string                   `json:"memo,omitempty"`
	UnsignedTransaction string                   `json:"unsignedTransaction"`
	ExpiresAt           time.Time                `json:"expiresAt"`
}

// Get handles GET /api/transaction/:txId requests
func (h *TransactionHandler) Get(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	tx, err := h.pending.Get(c.Request.Context(), c.Param("txId"))
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	c.JSON(http.StatusOK, PendingTransactionResponse{
		TxID:                tx.TxID,
		Status:              tx.Status,
		WalletAddress:       tx.WalletAddress,
		RecipientAddress:    tx.RecipientAddress,
		AmountSOL:           float64(tx.Lamports) / services.LamportsPerSOL,
		Memo:                tx.Memo,
		UnsignedTransaction: base64.StdEncoding.EncodeToString(tx.UnsignedPayload),
		ExpiresAt:           tx.ExpiresAt,
	})
}

// SignRequest carries the externally-signed transaction payload
type SignRequest struct {
	SignedTransaction string `json:"signedTransaction" binding:"required"`
}

// SignResponse is returned once the transaction reaches the network
type SignResponse struct {
	TxID        string                   `json:"txId"`
	Status      models.TransactionStatus `json:"status"`
	Signature   string                   `json:"signature"`
	ExplorerURL string                   `json:"explorerUrl"`
}

// Sign handles POST /api/transaction/:txId/sign requests. The signed
// payload is verified and submitted in one request so the signing page
// gets the network signature back immediately; confirmation continues
// in the background.
func (h *TransactionHandler) Sign(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	txID := c.Param("txId")

	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.SignedTransaction)
	if err != nil {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeBuildFailed,
			"Signed transaction must be base64 encoded.",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	tx, err := h.pending.Sign(c.Request.Context(), txID, payload)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	signature, err := h.pending.Submit(c.Request.Context(), tx, payload)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	h.reconciler.WaitForConfirmation(txID)

	c.JSON(http.StatusOK, SignResponse{
		TxID:        tx.TxID,
		Status:      tx.Status,
		Signature:   signature,
		ExplorerURL: h.explorerURL(signature),
	})
}

// Status handles GET /api/transaction/:txId/status requests. The record
// is reconciled against the ledger before it is reported, so the signing
// page sees confirmation as soon as the chain does.
func (h *TransactionHandler) Status(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	tx, err := h.pending.Get(c.Request.Context(), c.Param("txId"))
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	tx, err = h.reconciler.Reconcile(c.Request.Context(), tx)
	if err != nil {
		appErr := models.NewAppErrorWithCause(
			models.ErrorCodeRPCUnavailable,
			"Failed to check transaction status. Please try again shortly.",
			err,
		)
		models.HandleError(c, appErr, log)
		return
	}

	c.JSON(http.StatusOK, models.TransactionStatusResponse{
		TxID:      tx.TxID,
		Status:    tx.Status,
		Signature: tx.Signature,
	})
}
