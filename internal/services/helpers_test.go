package services_test

import (
	"context"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/internal/services"
	"solana-agent-wallet/internal/store"
	"solana-agent-wallet/pkg/metrics"
	"solana-agent-wallet/pkg/mutex"
)

// fakeGateway is a canned-response Gateway for service tests
type fakeGateway struct {
	balance      uint64
	balanceErr   error
	blockhash    solana.Hash
	blockhashErr error
	sendSig      solana.Signature
	sendErr      error
	sigStatus    *rpc.SignatureStatusesResult
	sigStatusErr error
	tokens       []services.TokenBalance
	tokensErr    error
	history      []*rpc.TransactionSignature
	historyErr   error
}

func (g *fakeGateway) Health(ctx context.Context) error { return nil }

func (g *fakeGateway) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	return g.balance, g.balanceErr
}

func (g *fakeGateway) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return g.blockhash, g.blockhashErr
}

func (g *fakeGateway) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error) {
	return g.sigStatus, g.sigStatusErr
}

func (g *fakeGateway) SendRawTransaction(ctx context.Context, payload []byte) (solana.Signature, error) {
	return g.sendSig, g.sendErr
}

func (g *fakeGateway) GetTokenBalances(ctx context.Context, owner solana.PublicKey) ([]services.TokenBalance, error) {
	return g.tokens, g.tokensErr
}

func (g *fakeGateway) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	return g.history, g.historyErr
}

// pendingFixture wires a PendingTxService onto in-memory storage
type pendingFixture struct {
	gateway *fakeGateway
	store   *store.MemoryTransactionStore
	svc     *services.PendingTxService
}

func newPendingFixture(t *testing.T, expiryTTL time.Duration) *pendingFixture {
	t.Helper()

	gateway := &fakeGateway{balance: 10 * services.LamportsPerSOL}
	cfg := &config.TransactionConfig{
		ExpiryTTL:    expiryTTL,
		EstimatedFee: 5000,
	}
	builder := services.NewTransactionBuilder(gateway, cfg)

	locks := mutex.New(time.Minute)
	t.Cleanup(locks.Stop)

	txStore := store.NewMemoryTransactionStore()
	svc := services.NewPendingTxService(txStore, builder, gateway, locks, cfg, metrics.NewCollector())

	return &pendingFixture{
		gateway: gateway,
		store:   txStore,
		svc:     svc,
	}
}

// connectedSession returns a session already bound to the wallet
func connectedSession(walletAddress string) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		SessionID:       "actor-1",
		ConnectionToken: "token-1",
		TokenExpiry:     now.Add(10 * time.Minute),
		Status:          models.SessionStatusConnected,
		WalletAddress:   walletAddress,
		CreatedAt:       now,
		LastUsedAt:      now,
	}
}

// signPayload decodes an unsigned payload, signs it with the wallet and
// returns the serialized signed transaction.
func signPayload(t *testing.T, payload []byte, wallet *solana.Wallet) []byte {
	t.Helper()

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(payload))
	require.NoError(t, err)

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(wallet.PublicKey()) {
			return &wallet.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)

	signed, err := tx.MarshalBinary()
	require.NoError(t, err)
	return signed
}

// requireAppError asserts err carries the given error code
func requireAppError(t *testing.T, err error, code models.ErrorCode) *models.AppError {
	t.Helper()

	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	return appErr
}
