package tools

import (
	"context"
	"fmt"

	"solana-agent-wallet/internal/models"
)

// CheckTransaction reconciles a transaction against ledger truth and
// reports its current status.
func (s *Service) CheckTransaction(ctx context.Context, actorID, txID string) (*Result, error) {
	if err := s.rateLimit("global", actorID, s.rateCfg.GlobalLimit, s.rateCfg.GlobalWindow); err != nil {
		return nil, err
	}

	tx, err := s.pending.Get(ctx, txID)
	if err != nil {
		return nil, err
	}

	tx, err = s.reconciler.Reconcile(ctx, tx)
	if err != nil {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeRPCUnavailable,
			"Failed to check transaction status. Please try again shortly.", err)
	}

	switch tx.Status {
	case models.TransactionStatusConfirmed:
		return &Result{Text: fmt.Sprintf("Transaction confirmed.\n\nSignature:\n%s", tx.Signature)}, nil
	case models.TransactionStatusFailed:
		return &Result{Text: "Transaction failed on-chain."}, nil
	default:
		return &Result{Text: fmt.Sprintf("Transaction status: %s", tx.Status)}, nil
	}
}
