// Package crank runs the permissionless dispute-timeout resolver. It is an
// ordinary caller of the escrow service: anyone could run the same loop, and
// the worker gains nothing from resolving beyond advancing the record.
package crank

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"escrowflow/escrow"
)

// Resolver is the slice of the escrow service the worker needs.
type Resolver interface {
	ListExpiredDisputes(ctx context.Context, limit int) ([]string, error)
	Get(ctx context.Context, taskID string) (escrow.Record, error)
	ResolveDispute(ctx context.Context, req escrow.PayoutRequest) (escrow.Record, error)
}

type Worker struct {
	svc      Resolver
	caller   escrow.Address
	interval time.Duration
	batch    int
	parallel int
}

// NewWorker builds a worker polling every interval, resolving up to batch
// expired disputes per tick with at most parallel concurrent resolutions.
func NewWorker(svc Resolver, caller escrow.Address, interval time.Duration) *Worker {
	return &Worker{
		svc:      svc,
		caller:   caller,
		interval: interval,
		batch:    100,
		parallel: 4,
	}
}

// Run polls until the context is cancelled. Resolution failures are logged
// and retried on a later tick; the engine itself never retries.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[crank] dispute resolver started (interval %s)", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				log.Printf("[crank] tick failed: %v", err)
			}
		}
	}
}

// Tick resolves every currently expired dispute once.
func (w *Worker) Tick(ctx context.Context) error {
	taskIDs, err := w.svc.ListExpiredDisputes(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(taskIDs) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallel)
	for _, taskID := range taskIDs {
		taskID := taskID
		g.Go(func() error {
			if err := w.resolve(ctx, taskID); err != nil {
				log.Printf("[crank] resolve %s failed: %v", taskID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) resolve(ctx context.Context, taskID string) error {
	rec, err := w.svc.Get(ctx, taskID)
	if err != nil {
		return err
	}

	_, err = w.svc.ResolveDispute(ctx, escrow.PayoutRequest{
		TaskID:    taskID,
		Caller:    w.caller,
		Agent:     rec.Agent,
		FeeWallet: rec.FeeWallet,
	})
	// Another caller may have beaten us to it between the scan and the lock.
	if errors.Is(err, escrow.ErrInvalidStatus) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[crank] task %s resolved after dispute timeout", taskID)
	return nil
}
