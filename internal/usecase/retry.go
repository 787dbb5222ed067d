package usecase

import (
	"context"
	"time"

	"clinic-booking/pkg/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RetryQueue hands a failed side effect to an out-of-band worker. Enqueueing
// the same booking twice must be harmless.
type RetryQueue interface {
	EnqueueRefund(ctx context.Context, bookingID uuid.UUID) error
	EnqueueRatingApply(ctx context.Context, bookingID uuid.UUID) error
	EnqueueSlotSettle(ctx context.Context, bookingID uuid.UUID) error
}

type inlineRetry struct {
	cfg utils.RetryConfig
	log *zap.Logger
}

// do runs fn with exponential backoff. Errors wrapped in backoff.Permanent
// stop the loop immediately.
func (r inlineRetry) do(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	if r.cfg.MaxInterval > 0 {
		b.MaxInterval = r.cfg.MaxInterval
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.InlineAttempts), ctx)
	return backoff.RetryNotify(fn, policy, func(err error, wait time.Duration) {
		r.log.Warn("Retrying side effect",
			zap.String("op", op),
			zap.Error(err),
			zap.Duration("wait", wait),
		)
	})
}
