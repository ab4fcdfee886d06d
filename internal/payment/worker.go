package payment

import (
	"context"
	"time"

	"github.com/soko-arts/marketplace/internal/logger"
)

// StatusClient queries the provider's current view of a transaction.
type StatusClient interface {
	TransactionStatus(ctx context.Context, trackingID string) (string, error)
}

// StatusApplier feeds a provider status through the reconciliation path.
type StatusApplier interface {
	ApplyPesapalStatus(ctx context.Context, trackingID, merchantRef, status string) error
}

type pollJob struct {
	trackingID  string
	merchantRef string
}

func workerLoop(ctx context.Context, id int, client StatusClient, jobs <-chan pollJob, applier StatusApplier) {
	log := logger.Log()
	for {
		select {
		case <-ctx.Done():
			log.Infow("payment poller worker stopped", "worker", id)
			return

		case job, ok := <-jobs:
			if !ok {
				log.Infow("payment poller jobs channel closed", "worker", id)
				return
			}

			status, err := client.TransactionStatus(ctx, job.trackingID)
			if err != nil {
				log.Warnw("transaction status query failed", "worker", id, "tracking", job.trackingID, "error", err)
				continue
			}
			if status == "" {
				continue
			}

			if err := applier.ApplyPesapalStatus(ctx, job.trackingID, job.merchantRef, status); err != nil {
				log.Warnw("apply polled status failed", "worker", id, "tracking", job.trackingID, "error", err)
			}
		}
	}
}

// DispatcherLoop periodically lists orders stuck awaiting a PesaPal result
// and fans their tracking ids out to a worker pool. The reconciliation path
// is the same one the IPN handler uses, so a late IPN and a poll result
// cannot double-apply.
func DispatcherLoop(ctx context.Context, client StatusClient, store OrderStore, applier StatusApplier, workerCount int, interval time.Duration) {
	log := logger.Log()
	jobs := make(chan pollJob, workerCount*3)

	for i := 1; i <= workerCount; i++ {
		go workerLoop(ctx, i, client, jobs, applier)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			return
		case <-ticker.C:
			orders, err := store.ListOrdersAwaitingPayment(ctx)
			if err != nil {
				log.Warnw("list orders awaiting payment", "error", err)
				continue
			}
			for _, o := range orders {
				if o.PesapalTrackingID == nil || o.PesapalMerchantRef == nil {
					continue
				}
				select {
				case jobs <- pollJob{trackingID: *o.PesapalTrackingID, merchantRef: *o.PesapalMerchantRef}:
				default:
					log.Infow("payment poller queue full, skipping this cycle", "order", o.Number)
				}
			}
		}
	}
}
