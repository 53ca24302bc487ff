package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
)

func newPending(txID string) *models.PendingTransaction {
	now := time.Now().UTC()
	return &models.PendingTransaction{
		TxID:             txID,
		SessionID:        "actor-1",
		WalletAddress:    "wallet-a",
		RecipientAddress: "wallet-b",
		Lamports:         1_500_000_000,
		Status:           models.TransactionStatusPending,
		Active:           true,
		ExpiresAt:        now.Add(15 * time.Minute),
		CreatedAt:        now,
	}
}

func TestMemoryTransactionStore(t *testing.T) {
	ctx := context.Background()

	t.Run("ActiveTupleUniqueness", func(t *testing.T) {
		s := NewMemoryTransactionStore()

		require.NoError(t, s.Insert(ctx, newPending("tx-1")))
		err := s.Insert(ctx, newPending("tx-2"))
		assert.ErrorIs(t, err, services.ErrDuplicateKey)
	})

	t.Run("TerminalRecordFreesTuple", func(t *testing.T) {
		s := NewMemoryTransactionStore()

		require.NoError(t, s.Insert(ctx, newPending("tx-1")))
		require.NoError(t, s.UpdateStatus(ctx, "tx-1",
			models.TransactionStatusPending, models.TransactionStatusExpired))

		assert.NoError(t, s.Insert(ctx, newPending("tx-2")))
	})

	t.Run("UpdateStatusIsCompareAndSet", func(t *testing.T) {
		s := NewMemoryTransactionStore()
		require.NoError(t, s.Insert(ctx, newPending("tx-1")))

		err := s.UpdateStatus(ctx, "tx-1",
			models.TransactionStatusSigned, models.TransactionStatusSubmitted)
		assert.ErrorIs(t, err, services.ErrConflict)

		require.NoError(t, s.UpdateStatus(ctx, "tx-1",
			models.TransactionStatusPending, models.TransactionStatusSigned))
		tx, err := s.FindByTxID(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSigned, tx.Status)
		assert.True(t, tx.Active)
	})

	t.Run("SetSubmittedRequiresSigned", func(t *testing.T) {
		s := NewMemoryTransactionStore()
		require.NoError(t, s.Insert(ctx, newPending("tx-1")))

		err := s.SetSubmitted(ctx, "tx-1", "sig")
		assert.ErrorIs(t, err, services.ErrConflict)
	})

	t.Run("ExpirePendingOnlyTouchesPending", func(t *testing.T) {
		s := NewMemoryTransactionStore()

		stale := newPending("tx-stale")
		stale.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		require.NoError(t, s.Insert(ctx, stale))

		signed := newPending("tx-signed")
		signed.SessionID = "actor-2"
		signed.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		require.NoError(t, s.Insert(ctx, signed))
		require.NoError(t, s.UpdateStatus(ctx, "tx-signed",
			models.TransactionStatusPending, models.TransactionStatusSigned))

		count, err := s.ExpirePending(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		tx, err := s.FindByTxID(ctx, "tx-signed")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSigned, tx.Status)
	})

	t.Run("CopiesAreReturned", func(t *testing.T) {
		s := NewMemoryTransactionStore()
		require.NoError(t, s.Insert(ctx, newPending("tx-1")))

		tx, err := s.FindByTxID(ctx, "tx-1")
		require.NoError(t, err)
		tx.Status = models.TransactionStatusConfirmed

		fresh, err := s.FindByTxID(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusPending, fresh.Status)
	})
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()

	newSession := func(id, token string) *models.Session {
		now := time.Now().UTC()
		return &models.Session{
			SessionID:       id,
			ConnectionToken: token,
			TokenExpiry:     now.Add(10 * time.Minute),
			Status:          models.SessionStatusPending,
			CreatedAt:       now,
			LastUsedAt:      now,
		}
	}

	t.Run("SessionIDUnique", func(t *testing.T) {
		s := NewMemorySessionStore()

		require.NoError(t, s.Insert(ctx, newSession("actor-1", "tok-1")))
		err := s.Insert(ctx, newSession("actor-1", "tok-2"))
		assert.ErrorIs(t, err, services.ErrDuplicateKey)
	})

	t.Run("LinkWalletRequiresPending", func(t *testing.T) {
		s := NewMemorySessionStore()
		require.NoError(t, s.Insert(ctx, newSession("actor-1", "tok-1")))

		linked, err := s.LinkWallet(ctx, "actor-1", "wallet-a", time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusConnected, linked.Status)

		_, err = s.LinkWallet(ctx, "actor-1", "wallet-b", time.Now().UTC())
		assert.ErrorIs(t, err, services.ErrConflict)
	})
}
