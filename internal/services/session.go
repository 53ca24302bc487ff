package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/pkg/logger"
)

// SessionService issues connection tokens, validates session liveness
// and performs the one-time wallet binding. Sessions are resolved per
// actor; the connection token is the sole proof that a human authorized
// binding their wallet to the agent session.
type SessionService struct {
	store       SessionStore
	tokenTTL    time.Duration
	frontendURL string
}

// NewSessionService creates a new session service
func NewSessionService(store SessionStore, cfg *config.SessionConfig, frontendURL string) *SessionService {
	return &SessionService{
		store:       store,
		tokenTTL:    cfg.TokenTTL,
		frontendURL: frontendURL,
	}
}

// CreateSession returns the existing session for the actor, or creates
// a fresh pending one with a high-entropy connection token. Idempotent:
// repeated calls for the same actor return the same session.
func (s *SessionService) CreateSession(ctx context.Context, actorID string) (*models.Session, error) {
	existing, err := s.store.FindByID(ctx, actorID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to look up session", err)
	}

	token, err := generateConnectionToken()
	if err != nil {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeInternalError, "Failed to generate connection token", err)
	}

	now := time.Now().UTC()
	session := &models.Session{
		SessionID:       actorID,
		ConnectionToken: token,
		TokenExpiry:     now.Add(s.tokenTTL),
		Status:          models.SessionStatusPending,
		CreatedAt:       now,
		LastUsedAt:      now,
	}

	if err := s.store.Insert(ctx, session); err != nil {
		// Two concurrent first contacts for the same actor: the unique
		// session_id index picks a winner, converge to it.
		if errors.Is(err, ErrDuplicateKey) {
			return s.store.FindByID(ctx, actorID)
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to create session", err)
	}

	logger.GetLogger().Info("Session created",
		zap.String("session_id", actorID),
		zap.Time("token_expiry", session.TokenExpiry),
	)

	return session, nil
}

// ValidateSession checks session liveness for the actor. A pending
// session whose token expiry has elapsed is transitioned to expired
// before the failure is returned; the expiry is enforced lazily here,
// never by a background sweep.
func (s *SessionService) ValidateSession(ctx context.Context, actorID string) (*models.SessionValidation, error) {
	session, err := s.store.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.NewAppError(models.ErrorCodeSessionNotFound, "No session found. Please start a new conversation.")
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to look up session", err)
	}

	if session.Status == models.SessionStatusExpired {
		return nil, models.NewAppError(models.ErrorCodeSessionExpired, "This session has expired. Please reconnect your wallet.")
	}

	now := time.Now().UTC()
	if session.Status == models.SessionStatusPending && session.TokenElapsed(now) {
		if err := s.store.MarkExpired(ctx, session.SessionID); err != nil {
			return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to expire session", err)
		}
		return nil, models.NewAppError(models.ErrorCodeTokenExpired, "The connection link has expired. Please request a new one.")
	}

	if err := s.store.Touch(ctx, session.SessionID, now); err != nil {
		logger.GetLogger().Warn("Failed to update session last_used_at",
			zap.String("session_id", session.SessionID),
			zap.Error(err),
		)
	}

	return &models.SessionValidation{
		Session:         session,
		WalletConnected: session.WalletConnected(),
	}, nil
}

// LinkWallet binds a wallet address to the session owning the token.
// This is the only place an external wallet address enters the system:
// the token must be unknown to everyone but the user, and the pending
// status guard makes the binding non-replayable.
func (s *SessionService) LinkWallet(ctx context.Context, token, walletAddress string) (*models.Session, error) {
	session, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.NewAppError(models.ErrorCodeInvalidToken, "Invalid connection token.")
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to look up token", err)
	}

	if session.Status != models.SessionStatusPending {
		return nil, models.NewAppError(models.ErrorCodeTokenAlreadyUsed, "This connection link has already been used.")
	}

	now := time.Now().UTC()
	if session.TokenElapsed(now) {
		if err := s.store.MarkExpired(ctx, session.SessionID); err != nil {
			return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to expire session", err)
		}
		return nil, models.NewAppError(models.ErrorCodeTokenExpired, "The connection link has expired. Please request a new one.")
	}

	linked, err := s.store.LinkWallet(ctx, session.SessionID, walletAddress, now)
	if err != nil {
		// A concurrent link won the pending→connected transition
		if errors.Is(err, ErrConflict) {
			return nil, models.NewAppError(models.ErrorCodeTokenAlreadyUsed, "This connection link has already been used.")
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to link wallet", err)
	}

	logger.GetLogger().Info("Wallet linked to session",
		zap.String("session_id", linked.SessionID),
		zap.String("wallet_address", walletAddress),
	)

	return linked, nil
}

// SessionForToken returns the session owning a connection token without
// consuming it. The frontend uses this to render the connect page state.
func (s *SessionService) SessionForToken(ctx context.Context, token string) (*models.Session, error) {
	session, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.NewAppError(models.ErrorCodeInvalidToken, "Invalid connection token.")
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to look up token", err)
	}
	return session, nil
}

// BuildConnectionURL formats the user-facing connect link for a token
func (s *SessionService) BuildConnectionURL(token string) string {
	return fmt.Sprintf("%s/connect?token=%s", s.frontendURL, token)
}

// generateConnectionToken returns a 64-character hex token from 32
// random bytes.
func generateConnectionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
