package tools

import (
	"context"
	"fmt"
	"strings"

	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
	"solana-agent-wallet/pkg/logger"

	"go.uber.org/zap"
)

// GetBalance returns the SOL and SPL token balances of the connected
// wallet, or the wallet-binding prompt if no wallet is bound yet.
func (s *Service) GetBalance(ctx context.Context, actorID string) (*Result, error) {
	if err := s.rateLimit("global", actorID, s.rateCfg.GlobalLimit, s.rateCfg.GlobalWindow); err != nil {
		return nil, err
	}
	if err := s.rateLimit("balance", actorID, s.rateCfg.BalanceLimit, s.rateCfg.BalanceWindow); err != nil {
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

	if cached, ok := s.balances.Get(session.WalletAddress); ok {
		return &Result{Text: cached}, nil
	}

	wallet, err := services.ValidateAddress(session.WalletAddress)
	if err != nil {
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeInvalidAddress,
			"Invalid wallet address stored for this session.", err.Error())
	}

	lamports, err := s.gateway.GetBalance(ctx, wallet)
	if err != nil {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeRPCUnavailable,
			"Failed to fetch wallet balance due to a Solana RPC error. Please try again shortly.", err)
	}

	tokens, err := s.gateway.GetTokenBalances(ctx, wallet)
	if err != nil {
		// SOL balance alone is still useful; log and carry on
		logger.GetLogger().Warn("Token account fetch failed",
			zap.String("wallet_address", session.WalletAddress),
			zap.Error(err),
		)
		tokens = nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Wallet: %s\n", session.WalletAddress)
	fmt.Fprintf(&b, "SOL Balance: %.4f SOL\n", float64(lamports)/services.LamportsPerSOL)

	if len(tokens) > 0 {
		b.WriteString("\nSPL Tokens:\n")
		for _, token := range tokens {
			fmt.Fprintf(&b, "- %s: %v\n", token.Mint, token.Amount)
		}
	} else {
		b.WriteString("\nNo SPL tokens found.")
	}

	text := b.String()
	s.balances.Set(session.WalletAddress, text)

	return &Result{Text: text}, nil
}
