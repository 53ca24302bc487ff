package tools

import (
	"context"
	"fmt"

	"solana-agent-wallet/internal/services"
)

// EstimateFee returns the fixed network fee estimate for a standard SOL
// transfer.
func (s *Service) EstimateFee(ctx context.Context, actorID string) (*Result, error) {
	if err := s.rateLimit("global", actorID, s.rateCfg.GlobalLimit, s.rateCfg.GlobalWindow); err != nil {
		return nil, err
	}

	feeSOL := float64(s.builder.EstimatedFee()) / services.LamportsPerSOL
	return &Result{Text: fmt.Sprintf("Estimated network fee: %.6f SOL", feeSOL)}, nil
}
