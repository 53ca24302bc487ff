package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/pkg/metrics"
)

// SolanaGateway wraps a single shared Solana RPC connection with
// bounded retry. The client is created lazily on first use and reused
// across calls; Reset forces re-creation for subsequent acquisitions
// without disturbing calls already holding the old handle.
type SolanaGateway struct {
	config    *config.RPCConfig
	collector *metrics.Collector

	mu     sync.Mutex
	client *rpc.Client
}

// NewSolanaGateway creates a new gateway for the configured endpoint
func NewSolanaGateway(cfg *config.RPCConfig, collector *metrics.Collector) *SolanaGateway {
	return &SolanaGateway{
		config:    cfg,
		collector: collector,
	}
}

// acquire returns the shared client, creating it on first use
func (g *SolanaGateway) acquire() *rpc.Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		g.client = rpc.New(g.config.Endpoint)
	}
	return g.client
}

// Reset discards the shared client so the next acquisition creates a
// fresh one. Called after a detected connection-level failure.
func (g *SolanaGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client = nil
}

// withRetry runs fn against the shared client with the configured retry
// budget. Only transport-level failures are retried; an RPC error
// reported by the ledger is a terminal outcome and surfaces immediately.
// The final failure is returned untouched.
func (g *SolanaGateway) withRetry(ctx context.Context, fn func(ctx context.Context, client *rpc.Client) error) error {
	client := g.acquire()

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		start := time.Now()
		err := fn(callCtx, client)
		g.collector.RecordRPCCall(time.Since(start), err == nil)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		if attempt < g.config.MaxRetries {
			g.collector.RecordRPCRetry()
			select {
			case <-time.After(g.config.RetryDelay):
			case <-ctx.Done():
				return lastErr
			}
		}
	}

	return lastErr
}

// Health checks whether the RPC endpoint is responsive
func (g *SolanaGateway) Health(ctx context.Context) error {
	return g.withRetry(ctx, func(ctx context.Context, client *rpc.Client) error {
		_, err := client.GetHealth(ctx)
		return err
	})
}

// GetBalance returns the lamport balance of an account
func (g *SolanaGateway) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	var balance uint64
	err := g.withRetry(ctx, func(ctx context.Context, client *rpc.Client) error {
		out, err := client.GetBalance(ctx, address, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		balance = out.Value
		return nil
	})
	return balance, err
}

// GetLatestBlockhash returns a fresh blockhash for transaction building
func (g *SolanaGateway) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var blockhash solana.Hash
	err := g.withRetry(ctx, func(ctx context.Context, client *rpc.Client) error {
		out, err := client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		blockhash = out.Value.Blockhash
		return nil
	})
	return blockhash, err
}

// GetSignatureStatus returns the ledger status of a submitted signature.
// A nil result means the ledger does not know the signature yet.
func (g *SolanaGateway) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error) {
	var status *rpc.SignatureStatusesResult
	err := g.withRetry(ctx, func(ctx context.Context, client *rpc.Client) error {
		out, err := client.GetSignatureStatuses(ctx, true, signature)
		if err != nil {
			return err
		}
		if len(out.Value) > 0 {
			status = out.Value[0]
		}
		return nil
	})
	return status, err
}

// SendRawTransaction submits a fully-signed serialized transaction
func (g *SolanaGateway) SendRawTransaction(ctx context.Context, payload []byte) (solana.Signature, error) {
	var signature solana.Signature
	err := g.withRetry(ctx, func(ctx context.Context, client *rpc.Client) error {
		sig, err := client.SendRawTransactionWithOpts(ctx, payload, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		signature = sig
		return nil
	})
	return signature, err
}

// GetTokenBalances returns the wallet's SPL token holdings with a
// non-zero balance.
func (g *SolanaGateway) GetTokenBalances(ctx context.Context, owner solana.PublicKey) ([]TokenBalance, error) {
	var balances []TokenBalance
	err := g.withRetry(ctx, func(ctx context.Context, client *rpc.Client) error {
		out, err := client.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{ProgramId: &solana.TokenProgramID},
			&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
		)
		if err != nil {
			return err
		}

		balances = balances[:0]
		for _, account := range out.Value {
			var parsed struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							UIAmount *float64 `json:"uiAmount"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			}
			if err := json.Unmarshal(account.Account.Data.GetRawJSON(), &parsed); err != nil {
				continue
			}
			if parsed.Parsed.Info.TokenAmount.UIAmount == nil || *parsed.Parsed.Info.TokenAmount.UIAmount <= 0 {
				continue
			}
			balances = append(balances, TokenBalance{
				Mint:   parsed.Parsed.Info.Mint,
				Amount: *parsed.Parsed.Info.TokenAmount.UIAmount,
			})
		}
		return nil
	})
	return balances, err
}

// GetSignaturesForAddress returns the most recent confirmed signatures
// involving the address, newest first.
func (g *SolanaGateway) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	var signatures []*rpc.TransactionSignature
	err := g.withRetry(ctx, func(ctx context.Context, client *rpc.Client) error {
		out, err := client.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		signatures = out
		return nil
	})
	return signatures, err
}
