package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"solana-agent-wallet/internal/config"
)

// LamportsPerSOL is the number of minor units in one SOL
const LamportsPerSOL = 1_000_000_000

// maxSOLDecimals is the lamport precision of a SOL amount
const maxSOLDecimals = 9

// UnsignedTransfer is the output of the builder: the serialized
// unsigned payload and the canonical lamport amount persisted
// downstream. The lamport value is never recomputed from the floating
// input after this point.
type UnsignedTransfer struct {
	Payload  []byte
	Lamports uint64
}

// TransactionBuilder validates transfer inputs, checks sender solvency
// and constructs unsigned SOL transfer payloads.
type TransactionBuilder struct {
	gateway      Gateway
	estimatedFee uint64
}

// NewTransactionBuilder creates a new builder
func NewTransactionBuilder(gateway Gateway, cfg *config.TransactionConfig) *TransactionBuilder {
	return &TransactionBuilder{
		gateway:      gateway,
		estimatedFee: cfg.EstimatedFee,
	}
}

// EstimatedFee returns the fixed network fee estimate in lamports
func (b *TransactionBuilder) EstimatedFee() uint64 {
	return b.estimatedFee
}

// ValidateAddress parses a base58 address and checks it is on the
// ed25519 curve, as required for a System Program transfer party.
func ValidateAddress(address string) (solana.PublicKey, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid Solana address format: %w", err)
	}
	if !pubkey.IsOnCurve() {
		return solana.PublicKey{}, fmt.Errorf("Solana address is not on curve")
	}
	return pubkey, nil
}

// ValidateAmount checks that a SOL amount is strictly positive and
// within lamport precision, and returns the canonical lamport value.
func ValidateAmount(amountSOL float64) (uint64, error) {
	if amountSOL <= 0 {
		return 0, fmt.Errorf("amount must be greater than zero")
	}

	formatted := strconv.FormatFloat(amountSOL, 'f', -1, 64)
	if parts := strings.SplitN(formatted, ".", 2); len(parts) == 2 && len(parts[1]) > maxSOLDecimals {
		return 0, fmt.Errorf("amount exceeds maximum SOL precision (%d decimals)", maxSOLDecimals)
	}

	return uint64(math.Round(amountSOL * LamportsPerSOL)), nil
}

// BuildUnsignedTransfer validates the transfer and produces the
// serialized unsigned payload. Validation order: addresses, amount,
// solvency; only then is a blockhash fetched and the payload built.
func (b *TransactionBuilder) BuildUnsignedTransfer(ctx context.Context, senderAddress, recipientAddress string, amountSOL float64) (*UnsignedTransfer, error) {
	sender, err := ValidateAddress(senderAddress)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	recipient, err := ValidateAddress(recipientAddress)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	lamports, err := ValidateAmount(amountSOL)
	if err != nil {
		return nil, err
	}

	if err := b.checkSufficientBalance(ctx, sender, lamports); err != nil {
		return nil, err
	}

	blockhash, err := b.gateway.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	instruction := system.NewTransferInstruction(lamports, sender, recipient).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		blockhash,
		solana.TransactionPayer(sender),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	// No signatures exist yet; the payload is serialized unsigned and
	// signature verification happens after the wallet signs it.
	payload, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	return &UnsignedTransfer{
		Payload:  payload,
		Lamports: lamports,
	}, nil
}

// InsufficientBalanceError reports the lamport shortfall for a transfer
type InsufficientBalanceError struct {
	RequiredLamports uint64
	BalanceLamports  uint64
}

// Error implements the error interface
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %.6f SOL, available %.6f SOL",
		float64(e.RequiredLamports)/LamportsPerSOL,
		float64(e.BalanceLamports)/LamportsPerSOL)
}

func (b *TransactionBuilder) checkSufficientBalance(ctx context.Context, sender solana.PublicKey, lamports uint64) error {
	balance, err := b.gateway.GetBalance(ctx, sender)
	if err != nil {
		return fmt.Errorf("failed to fetch sender balance: %w", err)
	}

	required := lamports + b.estimatedFee
	if balance < required {
		return &InsufficientBalanceError{
			RequiredLamports: required,
			BalanceLamports:  balance,
		}
	}
	return nil
}
