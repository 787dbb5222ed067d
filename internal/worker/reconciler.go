package worker

import (
	"context"
	"time"

	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

// Reconciler re-enqueues side effects that never finished: cancelled wallet
// bookings still marked paid, reviews not yet folded into the provider
// rating, and finished bookings whose slot is still booked. It covers jobs
// lost because enqueueing failed or the process died.
type Reconciler struct {
	bookings repository.BookingRepository
	queue    usecase.RetryQueue
	interval time.Duration
	batch    int
	log      *zap.Logger
}

func NewReconciler(bookings repository.BookingRepository, queue usecase.RetryQueue, cfg utils.RetryConfig, log *zap.Logger) *Reconciler {
	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Reconciler{
		bookings: bookings,
		queue:    queue,
		interval: interval,
		batch:    batch,
		log:      log.With(zap.String("component", "reconciler")),
	}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				r.log.Error("Reconcile sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce enqueues one batch of each kind and returns how many jobs it
// handed to the queue.
func (r *Reconciler) SweepOnce(ctx context.Context) (int, error) {
	enqueued := 0

	refunds, err := r.bookings.FindPendingRefunds(ctx, r.batch)
	if err != nil {
		return enqueued, err
	}
	for _, b := range refunds {
		if err := r.queue.EnqueueRefund(ctx, b.ID); err != nil {
			r.log.Warn("Failed to enqueue refund", zap.String("booking_id", b.ID.String()), zap.Error(err))
			continue
		}
		enqueued++
	}

	ratings, err := r.bookings.FindUnappliedRatings(ctx, r.batch)
	if err != nil {
		return enqueued, err
	}
	for _, b := range ratings {
		if err := r.queue.EnqueueRatingApply(ctx, b.ID); err != nil {
			r.log.Warn("Failed to enqueue rating update", zap.String("booking_id", b.ID.String()), zap.Error(err))
			continue
		}
		enqueued++
	}

	unsettled, err := r.bookings.FindUnsettledSlots(ctx, r.batch)
	if err != nil {
		return enqueued, err
	}
	for _, b := range unsettled {
		if err := r.queue.EnqueueSlotSettle(ctx, b.ID); err != nil {
			r.log.Warn("Failed to enqueue slot settle", zap.String("booking_id", b.ID.String()), zap.Error(err))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		r.log.Info("Reconciler enqueued side effects",
			zap.Int("refunds", len(refunds)),
			zap.Int("ratings", len(ratings)),
			zap.Int("slots", len(unsettled)),
		)
	}
	return enqueued, nil
}
