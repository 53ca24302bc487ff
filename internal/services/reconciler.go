package services

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/models"
	"solana-agent-wallet/pkg/logger"
	"solana-agent-wallet/pkg/metrics"
)

// Reconciler resolves submitted transactions against ledger truth.
// Every path that advances submitted→{confirmed,failed} funnels through
// Reconcile, whether triggered by the background worker, an on-demand
// status query, or the post-submit confirmation wait.
type Reconciler struct {
	store       TransactionStore
	gateway     Gateway
	collector   *metrics.Collector
	interval    time.Duration
	confirmWait time.Duration
	stopCh      chan struct{}
}

// NewReconciler creates a new reconciler
func NewReconciler(store TransactionStore, gateway Gateway, cfg *config.TransactionConfig, collector *metrics.Collector) *Reconciler {
	return &Reconciler{
		store:       store,
		gateway:     gateway,
		collector:   collector,
		interval:    cfg.ReconcileInterval,
		confirmWait: cfg.ConfirmWaitTimeout,
		stopCh:      make(chan struct{}),
	}
}

// Reconcile advances a submitted record based on its on-chain status.
// A finalized ledger error moves it to failed; a finalized clean status
// moves it to confirmed; an absent or unfinalized status leaves it
// unchanged for a later poll. Idempotent: a concurrent reconciliation
// winning the transition is not an error.
func (r *Reconciler) Reconcile(ctx context.Context, tx *models.PendingTransaction) (*models.PendingTransaction, error) {
	if tx.Status != models.TransactionStatusSubmitted || tx.Signature == "" {
		return tx, nil
	}

	signature, err := solana.SignatureFromBase58(tx.Signature)
	if err != nil {
		return tx, err
	}

	status, err := r.gateway.GetSignatureStatus(ctx, signature)
	if err != nil {
		return tx, err
	}
	if status == nil {
		return tx, nil
	}

	// Only a finalized status decides the outcome either way; an error
	// reported below finalized commitment can still be dropped with its
	// fork.
	if status.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
		return tx, nil
	}

	outcome := models.TransactionStatusConfirmed
	if status.Err != nil {
		outcome = models.TransactionStatusFailed
	}
	if err := r.transition(ctx, tx, outcome); err != nil {
		return tx, err
	}

	return tx, nil
}

func (r *Reconciler) transition(ctx context.Context, tx *models.PendingTransaction, to models.TransactionStatus) error {
	err := r.store.UpdateStatus(ctx, tx.TxID, models.TransactionStatusSubmitted, to)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Another reconciliation got there first; read what it decided
			if current, findErr := r.store.FindByTxID(ctx, tx.TxID); findErr == nil {
				tx.Status = current.Status
			}
			return nil
		}
		return err
	}

	tx.Status = to
	r.collector.RecordTxOutcome(string(to))
	logger.GetLogger().Info("Transaction reconciled",
		zap.String("tx_id", tx.TxID),
		zap.String("status", string(to)),
	)
	return nil
}

// Run polls submitted records until Stop is called or the context ends.
// Per-record failures are logged and swallowed so one bad record never
// halts the sweep; expired pending records are flagged on each pass.
func (r *Reconciler) Run(ctx context.Context) {
	log := logger.GetLogger()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info("Reconciliation worker started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-r.stopCh:
			log.Info("Reconciliation worker stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the worker loop to exit
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) sweep(ctx context.Context) {
	log := logger.GetLogger()

	submitted, err := r.store.ListSubmitted(ctx, 100)
	if err != nil {
		log.Error("Failed to list submitted transactions", zap.Error(err))
	} else {
		for _, tx := range submitted {
			if _, err := r.Reconcile(ctx, tx); err != nil {
				log.Warn("Failed to reconcile transaction",
					zap.String("tx_id", tx.TxID),
					zap.Error(err),
				)
			}
		}
	}

	expired, err := r.store.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		log.Error("Failed to expire pending transactions", zap.Error(err))
		return
	}
	if expired > 0 {
		for i := int64(0); i < expired; i++ {
			r.collector.RecordTxOutcome(string(models.TransactionStatusExpired))
		}
		log.Info("Expired pending transactions flagged", zap.Int64("count", expired))
	}
}

// WaitForConfirmation polls a just-submitted transaction until it
// reaches a terminal state or the wait budget elapses. Fire-and-forget:
// the caller does not block on it, and the background worker remains
// the authoritative path if this gives up early.
func (r *Reconciler) WaitForConfirmation(txID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.confirmWait)
		defer cancel()

		log := logger.GetLogger()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tx, err := r.store.FindByTxID(ctx, txID)
				if err != nil {
					log.Warn("Confirmation wait lookup failed", zap.String("tx_id", txID), zap.Error(err))
					return
				}
				if tx.Status.Terminal() {
					return
				}
				if _, err := r.Reconcile(ctx, tx); err != nil {
					log.Warn("Confirmation wait reconcile failed", zap.String("tx_id", txID), zap.Error(err))
				}
			}
		}
	}()
}
