package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-agent-wallet/internal/models"
)

func TestCreateTransfer(t *testing.T) {
	ctx := context.Background()
	sender := solana.NewWallet()
	recipient := solana.NewWallet()

	t.Run("CreatesPendingRecord", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		session := connectedSession(sender.PublicKey().String())

		result, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "rent")
		require.NoError(t, err)
		assert.False(t, result.Existing)

		tx := result.Tx
		assert.NotEmpty(t, tx.TxID)
		assert.Equal(t, models.TransactionStatusPending, tx.Status)
		assert.Equal(t, uint64(1_500_000_000), tx.Lamports)
		assert.Equal(t, "rent", tx.Memo)
		assert.NotEmpty(t, tx.UnsignedPayload)
		assert.True(t, tx.ExpiresAt.After(time.Now()))
	})

	t.Run("DuplicateReturnsSameRecord", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		session := connectedSession(sender.PublicKey().String())

		first, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)
		second, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)

		assert.True(t, second.Existing)
		assert.Equal(t, first.Tx.TxID, second.Tx.TxID)
	})

	t.Run("DifferentAmountCreatesNewRecord", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		session := connectedSession(sender.PublicKey().String())

		first, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)
		second, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 2.0, "")
		require.NoError(t, err)

		assert.False(t, second.Existing)
		assert.NotEqual(t, first.Tx.TxID, second.Tx.TxID)
	})

	t.Run("TerminalRecordDoesNotSuppress", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		session := connectedSession(sender.PublicKey().String())

		first, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)
		require.NoError(t, f.store.UpdateStatus(ctx, first.Tx.TxID,
			models.TransactionStatusPending, models.TransactionStatusExpired))

		second, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)
		assert.False(t, second.Existing)
		assert.NotEqual(t, first.Tx.TxID, second.Tx.TxID)
	})

	t.Run("InvalidRecipient", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		session := connectedSession(sender.PublicKey().String())

		_, err := f.svc.CreateTransfer(ctx, session, "bogus", 1.5, "")
		requireAppError(t, err, models.ErrorCodeInvalidAddress)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		session := connectedSession(sender.PublicKey().String())

		_, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), -1, "")
		requireAppError(t, err, models.ErrorCodeInvalidAmount)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		f.gateway.balance = 1000
		session := connectedSession(sender.PublicKey().String())

		_, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		requireAppError(t, err, models.ErrorCodeInsufficientBalance)
	})
}

func TestSign(t *testing.T) {
	ctx := context.Background()
	sender := solana.NewWallet()
	recipient := solana.NewWallet()

	create := func(t *testing.T, f *pendingFixture) *models.PendingTransaction {
		t.Helper()
		session := connectedSession(sender.PublicKey().String())
		result, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)
		return result.Tx
	}

	t.Run("AdvancesToSigned", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		tx := create(t, f)

		signed, err := f.svc.Sign(ctx, tx.TxID, signPayload(t, tx.UnsignedPayload, sender))
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSigned, signed.Status)

		stored, err := f.store.FindByTxID(ctx, tx.TxID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSigned, stored.Status)
	})

	t.Run("SignerMismatchFailsClosed", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		tx := create(t, f)

		// A payload signed by a different wallet, valid in itself
		imposter := solana.NewWallet()
		session := connectedSession(imposter.PublicKey().String())
		session.SessionID = "actor-2"
		other, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)

		_, err = f.svc.Sign(ctx, tx.TxID, signPayload(t, other.Tx.UnsignedPayload, imposter))
		requireAppError(t, err, models.ErrorCodeSignerMismatch)

		stored, err := f.store.FindByTxID(ctx, tx.TxID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusPending, stored.Status)
	})

	t.Run("UnsignedPayloadRejected", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		tx := create(t, f)

		_, err := f.svc.Sign(ctx, tx.TxID, tx.UnsignedPayload)
		requireAppError(t, err, models.ErrorCodeSignerMismatch)
	})

	t.Run("GarbagePayloadRejected", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		tx := create(t, f)

		_, err := f.svc.Sign(ctx, tx.TxID, []byte{0xde, 0xad, 0xbe, 0xef})
		requireAppError(t, err, models.ErrorCodeBuildFailed)
	})

	t.Run("SecondSignRejected", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		tx := create(t, f)
		payload := signPayload(t, tx.UnsignedPayload, sender)

		_, err := f.svc.Sign(ctx, tx.TxID, payload)
		require.NoError(t, err)

		_, err = f.svc.Sign(ctx, tx.TxID, payload)
		requireAppError(t, err, models.ErrorCodeAlreadyProcessed)
	})

	t.Run("ExpiredRecordRejectedAndFlagged", func(t *testing.T) {
		f := newPendingFixture(t, -time.Minute)
		tx := create(t, f)

		_, err := f.svc.Sign(ctx, tx.TxID, signPayload(t, tx.UnsignedPayload, sender))
		requireAppError(t, err, models.ErrorCodeTransactionExpired)

		stored, err := f.store.FindByTxID(ctx, tx.TxID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusExpired, stored.Status)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)

		_, err := f.svc.Sign(ctx, "no-such-tx", []byte{1})
		requireAppError(t, err, models.ErrorCodeTransactionNotFound)
	})
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	sender := solana.NewWallet()
	recipient := solana.NewWallet()

	signedTx := func(t *testing.T, f *pendingFixture) (*models.PendingTransaction, []byte) {
		t.Helper()
		session := connectedSession(sender.PublicKey().String())
		result, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)

		payload := signPayload(t, result.Tx.UnsignedPayload, sender)
		tx, err := f.svc.Sign(ctx, result.Tx.TxID, payload)
		require.NoError(t, err)
		return tx, payload
	}

	t.Run("AdvancesToSubmitted", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		tx, payload := signedTx(t, f)

		signature, err := f.svc.Submit(ctx, tx, payload)
		require.NoError(t, err)
		assert.NotEmpty(t, signature)

		stored, err := f.store.FindByTxID(ctx, tx.TxID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSubmitted, stored.Status)
		assert.Equal(t, signature, stored.Signature)
	})

	t.Run("SendFailureLeavesSigned", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		tx, payload := signedTx(t, f)
		f.gateway.sendErr = errors.New("rpc unavailable")

		_, err := f.svc.Submit(ctx, tx, payload)
		requireAppError(t, err, models.ErrorCodeRPCUnavailable)

		stored, err := f.store.FindByTxID(ctx, tx.TxID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSigned, stored.Status)
	})

	t.Run("RejectsUnsignedRecord", func(t *testing.T) {
		f := newPendingFixture(t, 15*time.Minute)
		session := connectedSession(sender.PublicKey().String())
		result, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
		require.NoError(t, err)

		_, err = f.svc.Submit(ctx, result.Tx, result.Tx.UnsignedPayload)
		requireAppError(t, err, models.ErrorCodeAlreadyProcessed)
	})
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	sender := solana.NewWallet()
	recipient := solana.NewWallet()

	f := newPendingFixture(t, -time.Minute)
	session := connectedSession(sender.PublicKey().String())

	result, err := f.svc.CreateTransfer(ctx, session, recipient.PublicKey().String(), 1.5, "")
	require.NoError(t, err)

	count, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := f.store.FindByTxID(ctx, result.Tx.TxID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusExpired, stored.Status)
}
