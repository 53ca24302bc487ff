package tools

import (
	"context"
	"fmt"
	"strings"

	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// GetTransactionHistory lists recent confirmed transactions for the
// connected wallet. Read-only ledger query, outside the pending
// transaction state machine.
func (s *Service) GetTransactionHistory(ctx context.Context, actorID string, limit int) (*Result, error) {
	if err := s.rateLimit("global", actorID, s.rateCfg.GlobalLimit, s.rateCfg.GlobalWindow); err != nil {
		return nil, err
	}
	if err := s.rateLimit("history", actorID, s.rateCfg.HistoryLimit, s.rateCfg.HistoryWindow); err != nil {
		return nil, err
	}

	validation, prompt, err := s.resolveSession(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if prompt != nil {
		return prompt, nil
	}

	session := validation.Session
	if !validation.WalletConnected {
		return s.connectPrompt(session), nil
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	wallet, err := services.ValidateAddress(session.WalletAddress)
	if err != nil {
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeInvalidAddress,
			"Invalid wallet address stored for this session.", err.Error())
	}

	signatures, err := s.gateway.GetSignaturesForAddress(ctx, wallet, limit)
	if err != nil {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeRPCUnavailable,
			"Failed to fetch transaction history due to a Solana RPC error. Please try again shortly.", err)
	}

	if len(signatures) == 0 {
		return &Result{Text: "No recent transactions found for this wallet."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent Transactions (last %d):\n\n", len(signatures))

	for _, sig := range signatures {
		status := "Confirmed"
		if sig.Err != nil {
			status = "Failed"
		}

		blockTime := "Unknown time"
		if sig.BlockTime != nil {
			blockTime = sig.BlockTime.Time().UTC().Format("2006-01-02 15:04:05 MST")
		}

		fmt.Fprintf(&b, "- Signature: %s\n", sig.Signature)
		fmt.Fprintf(&b, "  Status: %s\n", status)
		fmt.Fprintf(&b, "  Time: %s\n\n", blockTime)
	}

	return &Result{Text: strings.TrimSpace(b.String())}, nil
}
