// Package tools implements the agent-facing tool surface. Every tool
// invocation passes the rate limiter, then resolves the caller's
// session, before touching the transfer state machine or the ledger.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
	"solana-agent-wallet/pkg/cache"
	"solana-agent-wallet/pkg/metrics"
	"solana-agent-wallet/pkg/ratelimiter"
)

// Result is the text output of a tool call
type Result struct {
	Text string `json:"text"`
}

// Service exposes the five wallet tools to the agent
type Service struct {
	sessions   *services.SessionService
	pending    *services.PendingTxService
	reconciler *services.Reconciler
	builder    *services.TransactionBuilder
	gateway    services.Gateway
	limits     *ratelimiter.Store
	rateCfg    *config.RateLimitConfig
	frontend   string
	balances   *cache.Cache
	collector  *metrics.Collector
}

// NewService creates the tool service
func NewService(
	sessions *services.SessionService,
	pending *services.PendingTxService,
	reconciler *services.Reconciler,
	builder *services.TransactionBuilder,
	gateway services.Gateway,
	limits *ratelimiter.Store,
	cfg *config.Config,
	balances *cache.Cache,
	collector *metrics.Collector,
) *Service {
	return &Service{
		sessions:   sessions,
		pending:    pending,
		reconciler: reconciler,
		builder:    builder,
		gateway:    gateway,
		limits:     limits,
		rateCfg:    &cfg.RateLimit,
		frontend:   cfg.Server.FrontendURL,
		balances:   balances,
		collector:  collector,
	}
}

// rateLimit gates one operation class for one actor. The counter key is
// the (operation, actor) pair so classes throttle independently.
func (s *Service) rateLimit(label, actorID string, limit int, window time.Duration) error {
	key := fmt.Sprintf("%s:%s", label, actorID)
	if err := s.limits.Check(key, label, limit, window); err != nil {
		s.collector.RecordRateLimited()
		return models.NewAppError(models.ErrorCodeRateLimitExceeded,
			fmt.Sprintf("Too many %s requests. Please wait and try again.", label))
	}
	return nil
}

// resolveSession validates the actor's session. When no usable session
// exists it creates a fresh one and returns the connect prompt the
// caller should surface instead of proceeding.
func (s *Service) resolveSession(ctx context.Context, actorID string) (*models.SessionValidation, *Result, error) {
	validation, err := s.sessions.ValidateSession(ctx, actorID)
	if err == nil {
		return validation, nil, nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case models.ErrorCodeSessionNotFound, models.ErrorCodeSessionExpired, models.ErrorCodeTokenExpired:
			session, createErr := s.sessions.CreateSession(ctx, actorID)
			if createErr != nil {
				return nil, nil, createErr
			}
			return nil, s.connectPrompt(session), nil
		}
	}
	return nil, nil, err
}

// connectPrompt formats the wallet-binding prompt for an unbound session
func (s *Service) connectPrompt(session *models.Session) *Result {
	url := s.sessions.BuildConnectionURL(session.ConnectionToken)
	return &Result{Text: fmt.Sprintf("Please connect your wallet to continue:\n%s", url)}
}

// approvalURL formats the user-facing signing link for a transaction
func (s *Service) approvalURL(txID string) string {
	return fmt.Sprintf("%s/sign/%s", s.frontend, txID)
}
