package tools

import (
	"context"
	"fmt"

	"solana-agent-wallet/internal/models"
)

// TransferSOL creates a pending SOL transfer for user approval, or
// returns the already-in-flight transfer for the same recipient and
// amount. Repeated identical calls are answered by the same record.
func (s *Service) TransferSOL(ctx context.Context, actorID, recipientAddress string, amountSOL float64, memo string) (*Result, error) {
	if err := s.rateLimit("global", actorID, s.rateCfg.GlobalLimit, s.rateCfg.GlobalWindow); err != nil {
		return nil, err
	}
	if err := s.rateLimit("transfer", actorID, s.rateCfg.TransferLimit, s.rateCfg.TransferWindow); err != nil {
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
		return nil, models.NewAppError(models.ErrorCodeWalletNotConnected,
			"Please connect your wallet before making a transfer.")
	}

	result, err := s.pending.CreateTransfer(ctx, session, recipientAddress, amountSOL, memo)
	if err != nil {
		return nil, err
	}

	url := s.approvalURL(result.Tx.TxID)
	if result.Existing {
		return &Result{Text: fmt.Sprintf(
			"A transaction is already in progress.\n\nStatus: %s\n\nApprove here:\n%s",
			result.Tx.Status, url)}, nil
	}

	return &Result{Text: fmt.Sprintf("Transaction ready for approval:\n%s", url)}, nil
}
