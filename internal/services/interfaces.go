package services

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"solana-agent-wallet/internal/models"
)

// Store sentinel errors. Implementations translate their native driver
// errors into these so the services stay persistence-agnostic.
var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert violates a uniqueness constraint
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrConflict is returned when a guarded update matched no record,
	// meaning another writer advanced the state first
	ErrConflict = errors.New("state conflict")
)

// SessionStore is the persistence collaborator for sessions
type SessionStore interface {
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	Insert(ctx context.Context, session *models.Session) error
	// MarkExpired transitions a session to expired regardless of current status
	MarkExpired(ctx context.Context, sessionID string) error
	// LinkWallet atomically binds a wallet to a still-pending session.
	// Returns ErrConflict if the session is no longer pending.
	LinkWallet(ctx context.Context, sessionID, walletAddress string, now time.Time) (*models.Session, error)
	// Touch updates last_used_at
	Touch(ctx context.Context, sessionID string, now time.Time) error
}

// TransactionStore is the persistence collaborator for pending transactions
type TransactionStore interface {
	FindByTxID(ctx context.Context, txID string) (*models.PendingTransaction, error)
	// FindActive returns the non-terminal record for the tuple, or ErrNotFound
	FindActive(ctx context.Context, sessionID, recipient string, lamports uint64) (*models.PendingTransaction, error)
	// Insert adds a new record. Returns ErrDuplicateKey when an active
	// record for the same (session, recipient, amount) tuple already exists.
	Insert(ctx context.Context, tx *models.PendingTransaction) error
	// UpdateStatus performs a compare-and-set transition from one status
	// to another, clearing the active flag on terminal statuses. Returns
	// ErrConflict if the record was not in the expected status.
	UpdateStatus(ctx context.Context, txID string, from, to models.TransactionStatus) error
	// SetSubmitted transitions signed→submitted recording the signature
	SetSubmitted(ctx context.Context, txID, signature string) error
	// ListSubmitted returns records awaiting reconciliation
	ListSubmitted(ctx context.Context, limit int64) ([]*models.PendingTransaction, error)
	// ExpirePending flags still-pending records past their expiry.
	// Signed and submitted records are left for chain truth to decide.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// TokenBalance is one SPL token holding of a wallet
type TokenBalance struct {
	Mint   string  `json:"mint"`
	Amount float64 `json:"amount"`
}

// Gateway is the boundary to the Solana RPC endpoint. All methods carry
// the gateway's bounded retry; failures surface only after the retry
// budget is exhausted.
type Gateway interface {
	Health(ctx context.Context) error
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error)
	SendRawTransaction(ctx context.Context, payload []byte) (solana.Signature, error)
	GetTokenBalances(ctx context.Context, owner solana.PublicKey) ([]TokenBalance, error)
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error)
}
