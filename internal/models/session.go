package models

import "time"

// SessionStatus represents the lifecycle state of an agent session
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusConnected SessionStatus = "connected"
	SessionStatusExpired   SessionStatus = "expired"
)

// Session binds an opaque agent session to a user-controlled wallet.
// The connection token is the single-use credential proving the user
// authorized the binding; wallet_address is immutable once connected.
type Session struct {
	SessionID       string        `bson:"session_id" json:"session_id"`
	ConnectionToken string        `bson:"connection_token" json:"connection_token"`
	TokenExpiry     time.Time     `bson:"token_expiry" json:"token_expiry"`
	Status          SessionStatus `bson:"status" json:"status"`
	WalletAddress   string        `bson:"wallet_address,omitempty" json:"wallet_address,omitempty"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
	LastUsedAt      time.Time     `bson:"last_used_at" json:"last_used_at"`
}

// WalletConnected reports whether a wallet has been bound to the session
func (s *Session) WalletConnected() bool {
	return s.WalletAddress != ""
}

// TokenElapsed reports whether the connection token expiry has passed
func (s *Session) TokenElapsed(now time.Time) bool {
	return s.TokenExpiry.Before(now)
}

// SessionValidation is the result of validating a session for use
type SessionValidation struct {
	Session         *Session
	WalletConnected bool
}
