package services_test

import (
	"context"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/services"
)

func TestValidateAmount(t *testing.T) {
	t.Run("ConvertsToLamports", func(t *testing.T) {
		lamports, err := services.ValidateAmount(1.5)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_500_000_000), lamports)
	})

	t.Run("SmallestUnit", func(t *testing.T) {
		lamports, err := services.ValidateAmount(0.000000001)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), lamports)
	})

	t.Run("RejectsZero", func(t *testing.T) {
		_, err := services.ValidateAmount(0)
		assert.Error(t, err)
	})

	t.Run("RejectsNegative", func(t *testing.T) {
		_, err := services.ValidateAmount(-1)
		assert.Error(t, err)
	})

	t.Run("RejectsSubLamportPrecision", func(t *testing.T) {
		_, err := services.ValidateAmount(0.0000000001)
		assert.Error(t, err)
	})
}

func TestValidateAddress(t *testing.T) {
	t.Run("AcceptsOnCurveAddress", func(t *testing.T) {
		wallet := solana.NewWallet()

		pubkey, err := services.ValidateAddress(wallet.PublicKey().String())
		require.NoError(t, err)
		assert.Equal(t, wallet.PublicKey(), pubkey)
	})

	t.Run("RejectsMalformedAddress", func(t *testing.T) {
		_, err := services.ValidateAddress("not-a-solana-address")
		assert.Error(t, err)
	})

	t.Run("RejectsEmptyAddress", func(t *testing.T) {
		_, err := services.ValidateAddress("")
		assert.Error(t, err)
	})
}

func TestBuildUnsignedTransfer(t *testing.T) {
	ctx := context.Background()
	sender := solana.NewWallet()
	recipient := solana.NewWallet()

	newBuilder := func(gateway *fakeGateway) *services.TransactionBuilder {
		return services.NewTransactionBuilder(gateway, &config.TransactionConfig{EstimatedFee: 5000})
	}

	t.Run("BuildsDecodablePayload", func(t *testing.T) {
		builder := newBuilder(&fakeGateway{balance: 10 * services.LamportsPerSOL})

		unsigned, err := builder.BuildUnsignedTransfer(ctx, sender.PublicKey().String(), recipient.PublicKey().String(), 1.5)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_500_000_000), unsigned.Lamports)

		tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(unsigned.Payload))
		require.NoError(t, err)
		assert.Equal(t, sender.PublicKey(), tx.Message.AccountKeys[0])
	})

	t.Run("InsufficientBalanceIncludesFee", func(t *testing.T) {
		// Exactly the transfer amount but short of amount + fee
		builder := newBuilder(&fakeGateway{balance: 1_500_000_000})

		_, err := builder.BuildUnsignedTransfer(ctx, sender.PublicKey().String(), recipient.PublicKey().String(), 1.5)
		require.Error(t, err)

		var insufficient *services.InsufficientBalanceError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, uint64(1_500_005_000), insufficient.RequiredLamports)
		assert.Equal(t, uint64(1_500_000_000), insufficient.BalanceLamports)
	})

	t.Run("BalanceFetchFailure", func(t *testing.T) {
		builder := newBuilder(&fakeGateway{balanceErr: errors.New("rpc timeout")})

		_, err := builder.BuildUnsignedTransfer(ctx, sender.PublicKey().String(), recipient.PublicKey().String(), 1.5)
		assert.Error(t, err)
	})

	t.Run("BlockhashFetchFailure", func(t *testing.T) {
		builder := newBuilder(&fakeGateway{
			balance:      10 * services.LamportsPerSOL,
			blockhashErr: errors.New("rpc timeout"),
		})

		_, err := builder.BuildUnsignedTransfer(ctx, sender.PublicKey().String(), recipient.PublicKey().String(), 1.5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blockhash")
	})

	t.Run("InvalidSender", func(t *testing.T) {
		builder := newBuilder(&fakeGateway{balance: 10 * services.LamportsPerSOL})

		_, err := builder.BuildUnsignedTransfer(ctx, "bogus", recipient.PublicKey().String(), 1.5)
		assert.Error(t, err)
	})
}
