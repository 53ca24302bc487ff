package models

import "time"

// TransactionStatus represents the lifecycle state of a pending transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSigned    TransactionStatus = "signed"
	TransactionStatusSubmitted TransactionStatus = "submitted"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusExpired   TransactionStatus = "expired"
)

// Terminal reports whether the status can no longer advance
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusConfirmed, TransactionStatusFailed, TransactionStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether a forward edge exists from s to next.
// Valid edges: pending→signed→submitted→{confirmed,failed}, pending→expired.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusSigned || next == TransactionStatusExpired
	case TransactionStatusSigned:
		return next == TransactionStatusSubmitted
	case TransactionStatusSubmitted:
		return next == TransactionStatusConfirmed || next == TransactionStatusFailed
	}
	return false
}

// PendingTransaction is a proposed SOL transfer awaiting user approval.
// Amount is always lamports, never a floating-point SOL value. Active is
// true while the status is non-terminal; it backs the partial unique
// index that enforces duplicate suppression across concurrent writers.
type PendingTransaction struct {
	TxID             string            `bson:"tx_id" json:"tx_id"`
	SessionID        string            `bson:"session_id" json:"session_id"`
	WalletAddress    string            `bson:"wallet_address" json:"wallet_address"`
	RecipientAddress string            `bson:"recipient_address" json:"recipient_address"`
	Lamports         uint64            `bson:"amount" json:"amount"`
	Memo             string            `bson:"memo,omitempty" json:"memo,omitempty"`
	Status           TransactionStatus `bson:"status" json:"status"`
	Active           bool              `bson:"active" json:"-"`
	UnsignedPayload  []byte            `bson:"unsigned_transaction" json:"unsigned_transaction"`
	Signature        string            `bson:"signature,omitempty" json:"signature,omitempty"`
	ExpiresAt        time.Time         `bson:"expires_at" json:"expires_at"`
	CreatedAt        time.Time         `bson:"created_at" json:"created_at"`
}

// Expired reports whether the approval window has elapsed
func (t *PendingTransaction) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// TransactionStatusResponse is returned by the status and check endpoints
type TransactionStatusResponse struct {
	TxID      string            `json:"txId"`
	Status    TransactionStatus `json:"status"`
	Signature string            `json:"signature,omitempty"`
}
