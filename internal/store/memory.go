package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
)

// MemorySessionStore is an in-memory SessionStore with the same
// uniqueness semantics as the Mongo implementation. Used for local
// development and tests; state does not survive a restart.
type MemorySessionStore struct {
	mu      sync.Mutex
	byID    map[string]*models.Session
	byToken map[string]string
}

// NewMemorySessionStore creates an empty in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byID:    make(map[string]*models.Session),
		byToken: make(map[string]string),
	}
}

// FindByID returns the session for an actor ID
func (s *MemorySessionStore) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.byID[sessionID]
	if !exists {
		return nil, services.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// FindByToken returns the session owning a connection token
func (s *MemorySessionStore) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID, exists := s.byToken[token]
	if !exists {
		return nil, services.ErrNotFound
	}
	copied := *s.byID[sessionID]
	return &copied, nil
}

// Insert adds a new session
func (s *MemorySessionStore) Insert(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[session.SessionID]; exists {
		return services.ErrDuplicateKey
	}
	if _, exists := s.byToken[session.ConnectionToken]; exists {
		return services.ErrDuplicateKey
	}

	copied := *session
	s.byID[session.SessionID] = &copied
	s.byToken[session.ConnectionToken] = session.SessionID
	return nil
}

// MarkExpired transitions a session to expired
func (s *MemorySessionStore) MarkExpired(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists := s.byID[sessionID]; exists {
		session.Status = models.SessionStatusExpired
	}
	return nil
}

// LinkWallet atomically binds a wallet to a still-pending session
func (s *MemorySessionStore) LinkWallet(ctx context.Context, sessionID, walletAddress string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.byID[sessionID]
	if !exists {
		return nil, services.ErrNotFound
	}
	if session.Status != models.SessionStatusPending {
		return nil, services.ErrConflict
	}

	session.WalletAddress = walletAddress
	session.Status = models.SessionStatusConnected
	session.LastUsedAt = now

	copied := *session
	return &copied, nil
}

// Touch updates last_used_at
func (s *MemorySessionStore) Touch(ctx context.Context, sessionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists := s.byID[sessionID]; exists {
		session.LastUsedAt = now
	}
	return nil
}

// MemoryTransactionStore is an in-memory TransactionStore mirroring the
// Mongo implementation's constraints, including the active-tuple
// uniqueness guard.
type MemoryTransactionStore struct {
	mu   sync.Mutex
	byID map[string]*models.PendingTransaction
}

// NewMemoryTransactionStore creates an empty in-memory transaction store
func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{
		byID: make(map[string]*models.PendingTransaction),
	}
}

// FindByTxID returns the record for a transaction ID
func (s *MemoryTransactionStore) FindByTxID(ctx context.Context, txID string) (*models.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.byID[txID]
	if !exists {
		return nil, services.ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

// FindActive returns the non-terminal record for the tuple
func (s *MemoryTransactionStore) FindActive(ctx context.Context, sessionID, recipient string, lamports uint64) (*models.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx := s.findActiveLocked(sessionID, recipient, lamports); tx != nil {
		copied := *tx
		return &copied, nil
	}
	return nil, services.ErrNotFound
}

// Insert adds a new record, rejecting a second active record for the
// same tuple.
func (s *MemoryTransactionStore) Insert(ctx context.Context, tx *models.PendingTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[tx.TxID]; exists {
		return services.ErrDuplicateKey
	}
	if tx.Active && s.findActiveLocked(tx.SessionID, tx.RecipientAddress, tx.Lamports) != nil {
		return services.ErrDuplicateKey
	}

	copied := *tx
	s.byID[tx.TxID] = &copied
	return nil
}

// UpdateStatus performs a compare-and-set transition
func (s *MemoryTransactionStore) UpdateStatus(ctx context.Context, txID string, from, to models.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.byID[txID]
	if !exists {
		return services.ErrNotFound
	}
	if tx.Status != from {
		return services.ErrConflict
	}

	tx.Status = to
	tx.Active = !to.Terminal()
	return nil
}

// SetSubmitted transitions signed→submitted recording the signature
func (s *MemoryTransactionStore) SetSubmitted(ctx context.Context, txID, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.byID[txID]
	if !exists {
		return services.ErrNotFound
	}
	if tx.Status != models.TransactionStatusSigned {
		return services.ErrConflict
	}

	tx.Status = models.TransactionStatusSubmitted
	tx.Signature = signature
	return nil
}

// ListSubmitted returns records awaiting reconciliation, oldest first
func (s *MemoryTransactionStore) ListSubmitted(ctx context.Context, limit int64) ([]*models.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txs []*models.PendingTransaction
	for _, tx := range s.byID {
		if tx.Status == models.TransactionStatusSubmitted {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
	if int64(len(txs)) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// ExpirePending flags still-pending records past their expiry
func (s *MemoryTransactionStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, tx := range s.byID {
		if tx.Status == models.TransactionStatusPending && tx.ExpiresAt.Before(now) {
			tx.Status = models.TransactionStatusExpired
			tx.Active = false
			count++
		}
	}
	return count, nil
}

func (s *MemoryTransactionStore) findActiveLocked(sessionID, recipient string, lamports uint64) *models.PendingTransaction {
	for _, tx := range s.byID {
		if tx.Active && tx.SessionID == sessionID && tx.RecipientAddress == recipient && tx.Lamports == lamports {
			return tx
		}
	}
	return nil
}
