package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/pkg/logger"
	"solana-agent-wallet/pkg/metrics"
)

// PendingTxService owns the lifecycle of proposed transfers from
// creation to terminal state: duplicate suppression, the signing guards,
// submission and expiry. Status only moves forward along
// pending→signed→submitted→{confirmed,failed}, or pending→expired.
type PendingTxService struct {
	store     TransactionStore
	builder   *TransactionBuilder
	gateway   Gateway
	locks     KeyedLocker
	collector *metrics.Collector
	expiryTTL time.Duration
}

// KeyedLocker serializes work per key; pkg/mutex provides the
// production implementation.
type KeyedLocker interface {
	Lock(key string)
	Unlock(key string)
}

// NewPendingTxService creates a new pending-transaction service
func NewPendingTxService(store TransactionStore, builder *TransactionBuilder, gateway Gateway, locks KeyedLocker, cfg *config.TransactionConfig, collector *metrics.Collector) *PendingTxService {
	return &PendingTxService{
		store:     store,
		builder:   builder,
		gateway:   gateway,
		locks:     locks,
		collector: collector,
		expiryTTL: cfg.ExpiryTTL,
	}
}

// TransferResult is the outcome of a create call. Existing is true when
// an in-flight duplicate answered the request instead of a new record.
type TransferResult struct {
	Tx       *models.PendingTransaction
	Existing bool
}

// CreateTransfer creates a pending transfer for the session, or returns
// the existing non-terminal record for the same (session, recipient,
// amount) tuple. The duplicate check is serialized per tuple in-process
// and backed by the store's uniqueness constraint on active records; a
// racing loser converges to the winner's record.
func (p *PendingTxService) CreateTransfer(ctx context.Context, session *models.Session, recipientAddress string, amountSOL float64, memo string) (*TransferResult, error) {
	if _, err := ValidateAddress(recipientAddress); err != nil {
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeInvalidAddress, "Invalid recipient address.", err.Error())
	}
	lamports, err := ValidateAmount(amountSOL)
	if err != nil {
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeInvalidAmount, "Invalid transfer amount.", err.Error())
	}

	tupleKey := fmt.Sprintf("%s:%s:%d", session.SessionID, recipientAddress, lamports)
	p.locks.Lock(tupleKey)
	defer p.locks.Unlock(tupleKey)

	existing, err := p.store.FindActive(ctx, session.SessionID, recipientAddress, lamports)
	if err == nil {
		p.collector.RecordTxDeduplicated()
		return &TransferResult{Tx: existing, Existing: true}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to check for existing transfers", err)
	}

	unsigned, err := p.builder.BuildUnsignedTransfer(ctx, session.WalletAddress, recipientAddress, amountSOL)
	if err != nil {
		return nil, mapBuildError(err)
	}

	now := time.Now().UTC()
	tx := &models.PendingTransaction{
		TxID:             uuid.New().String(),
		SessionID:        session.SessionID,
		WalletAddress:    session.WalletAddress,
		RecipientAddress: recipientAddress,
		Lamports:         unsigned.Lamports,
		Memo:             memo,
		Status:           models.TransactionStatusPending,
		Active:           true,
		UnsignedPayload:  unsigned.Payload,
		ExpiresAt:        now.Add(p.expiryTTL),
		CreatedAt:        now,
	}

	if err := p.store.Insert(ctx, tx); err != nil {
		// The storage uniqueness constraint is the arbiter across
		// writers: if another instance inserted first, return its record.
		if errors.Is(err, ErrDuplicateKey) {
			winner, findErr := p.store.FindActive(ctx, session.SessionID, recipientAddress, lamports)
			if findErr == nil {
				p.collector.RecordTxDeduplicated()
				return &TransferResult{Tx: winner, Existing: true}, nil
			}
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to store pending transaction", err)
	}

	p.collector.RecordTxCreated()
	logger.GetLogger().Info("Pending transaction created",
		zap.String("tx_id", tx.TxID),
		zap.String("session_id", tx.SessionID),
		zap.Uint64("lamports", tx.Lamports),
		zap.Time("expires_at", tx.ExpiresAt),
	)

	return &TransferResult{Tx: tx}, nil
}

// Get returns the pending transaction record for a tx ID
func (p *PendingTxService) Get(ctx context.Context, txID string) (*models.PendingTransaction, error) {
	tx, err := p.store.FindByTxID(ctx, txID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.NewAppError(models.ErrorCodeTransactionNotFound, "Transaction not found.")
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to look up transaction", err)
	}
	return tx, nil
}

// Sign accepts the externally-signed payload for a pending transaction.
// The embedded fee payer must match the record's wallet address; a
// mismatch fails closed with the status left at pending, since accepting
// it would let an attacker redirect funds through a hijacked approval
// link. On success the record advances to signed.
func (p *PendingTxService) Sign(ctx context.Context, txID string, signedPayload []byte) (*models.PendingTransaction, error) {
	tx, err := p.Get(ctx, txID)
	if err != nil {
		return nil, err
	}

	if tx.Status != models.TransactionStatusPending {
		return nil, models.NewAppError(models.ErrorCodeAlreadyProcessed, "Transaction already processed.")
	}

	now := time.Now().UTC()
	if tx.Expired(now) {
		// Lazy expiry: flag it before failing so no later read trusts it
		if err := p.store.UpdateStatus(ctx, txID, models.TransactionStatusPending, models.TransactionStatusExpired); err == nil {
			p.collector.RecordTxOutcome(string(models.TransactionStatusExpired))
		}
		return nil, models.NewAppError(models.ErrorCodeTransactionExpired, "Transaction expired. Please create a new transfer.")
	}

	signed, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signedPayload))
	if err != nil {
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeBuildFailed, "Could not decode signed transaction.", err.Error())
	}

	if len(signed.Signatures) == 0 {
		return nil, models.NewAppError(models.ErrorCodeSignerMismatch, "Signed transaction carries no signature.")
	}
	if err := signed.VerifySignatures(); err != nil {
		return nil, models.NewAppError(models.ErrorCodeSignerMismatch, "Signature verification failed.")
	}

	signer := signed.Message.AccountKeys[0].String()
	if signer != tx.WalletAddress {
		logger.GetLogger().Warn("Signer mismatch on pending transaction",
			zap.String("tx_id", txID),
			zap.String("expected", tx.WalletAddress),
			zap.String("actual", signer),
		)
		return nil, models.NewAppError(models.ErrorCodeSignerMismatch, "Signed wallet does not match transaction sender.")
	}

	if err := p.store.UpdateStatus(ctx, txID, models.TransactionStatusPending, models.TransactionStatusSigned); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, models.NewAppError(models.ErrorCodeAlreadyProcessed, "Transaction already processed.")
		}
		return nil, models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to update transaction", err)
	}

	tx.Status = models.TransactionStatusSigned
	return tx, nil
}

// Submit sends the verified signed payload to the ledger and advances
// the record to submitted with the returned signature. It must be
// called immediately after a successful Sign on the same payload; no
// payload reaches the ledger without its signer having been verified.
func (p *PendingTxService) Submit(ctx context.Context, tx *models.PendingTransaction, signedPayload []byte) (string, error) {
	if tx.Status != models.TransactionStatusSigned {
		return "", models.NewAppError(models.ErrorCodeAlreadyProcessed, "Transaction is not ready for submission.")
	}

	signature, err := p.gateway.SendRawTransaction(ctx, signedPayload)
	if err != nil {
		return "", models.NewAppErrorWithCause(models.ErrorCodeRPCUnavailable, "Failed to submit transaction to the network.", err)
	}

	if err := p.store.SetSubmitted(ctx, tx.TxID, signature.String()); err != nil {
		if errors.Is(err, ErrConflict) {
			return "", models.NewAppError(models.ErrorCodeAlreadyProcessed, "Transaction already processed.")
		}
		return "", models.NewAppErrorWithCause(models.ErrorCodeDatabaseError, "Failed to record submission", err)
	}

	tx.Status = models.TransactionStatusSubmitted
	tx.Signature = signature.String()

	logger.GetLogger().Info("Transaction submitted",
		zap.String("tx_id", tx.TxID),
		zap.String("signature", tx.Signature),
	)

	return tx.Signature, nil
}

// SweepExpired flags still-pending records whose approval window has
// elapsed. Signed and submitted records are untouched; once a signature
// exists only chain truth decides the outcome.
func (p *PendingTxService) SweepExpired(ctx context.Context) (int64, error) {
	count, err := p.store.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < count; i++ {
		p.collector.RecordTxOutcome(string(models.TransactionStatusExpired))
	}
	return count, nil
}

// mapBuildError translates builder failures into the error taxonomy
func mapBuildError(err error) *models.AppError {
	var insufficient *InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return models.NewAppErrorWithDetails(models.ErrorCodeInsufficientBalance,
			fmt.Sprintf("Insufficient balance. Required: %.6f SOL.", float64(insufficient.RequiredLamports)/LamportsPerSOL),
			err.Error())
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "address"):
		return models.NewAppErrorWithDetails(models.ErrorCodeInvalidAddress, "Invalid address.", msg)
	case strings.Contains(msg, "amount"):
		return models.NewAppErrorWithDetails(models.ErrorCodeInvalidAmount, "Invalid transfer amount.", msg)
	case strings.Contains(msg, "blockhash"), strings.Contains(msg, "balance"):
		return models.NewAppErrorWithCause(models.ErrorCodeRPCUnavailable, "Solana RPC is unavailable. Please try again shortly.", err)
	default:
		return models.NewAppErrorWithCause(models.ErrorCodeBuildFailed, "Failed to build transaction.", err)
	}
}
