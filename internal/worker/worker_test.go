package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository/memory"
	"clinic-booking/internal/usecase"
	"clinic-booking/internal/worker"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	mu       sync.Mutex
	failures int
	err      error
	refunds  []uuid.UUID
	ratings  []uuid.UUID
	settles  []uuid.UUID
}

func (p *fakeProcessor) next() error {
	if p.err != nil {
		return p.err
	}
	if p.failures > 0 {
		p.failures--
		return errors.New("database unavailable")
	}
	return nil
}

func (p *fakeProcessor) ProcessRefund(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.next(); err != nil {
		return err
	}
	p.refunds = append(p.refunds, id)
	return nil
}

func (p *fakeProcessor) ApplyRating(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.next(); err != nil {
		return err
	}
	p.ratings = append(p.ratings, id)
	return nil
}

func (p *fakeProcessor) SettleSlot(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.next(); err != nil {
		return err
	}
	p.settles = append(p.settles, id)
	return nil
}

func (p *fakeProcessor) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.refunds), len(p.ratings)
}

type recordingQueue struct {
	refunds []uuid.UUID
	ratings []uuid.UUID
	settles []uuid.UUID
}

func (q *recordingQueue) EnqueueRefund(_ context.Context, id uuid.UUID) error {
	q.refunds = append(q.refunds, id)
	return nil
}

func (q *recordingQueue) EnqueueRatingApply(_ context.Context, id uuid.UUID) error {
	q.ratings = append(q.ratings, id)
	return nil
}

func (q *recordingQueue) EnqueueSlotSettle(_ context.Context, id uuid.UUID) error {
	q.settles = append(q.settles, id)
	return nil
}

func retryConfig() utils.RetryConfig {
	return utils.RetryConfig{
		InlineAttempts:  1,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		BatchSize:       10,
		QueueMaxRetry:   5,
	}
}

func TestHandleTaskDispatchesByType(t *testing.T) {
	proc := &fakeProcessor{}
	handler := worker.HandleTask(proc, metrics.New(prometheus.NewRegistry()), zap.NewNop())

	bookingID := uuid.New()
	refund, err := worker.NewBookingTask(worker.TypeRefundCredit, bookingID)
	require.NoError(t, err)
	rating, err := worker.NewBookingTask(worker.TypeRatingApply, bookingID)
	require.NoError(t, err)
	settle, err := worker.NewBookingTask(worker.TypeSlotSettle, bookingID)
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), refund))
	require.NoError(t, handler.ProcessTask(context.Background(), rating))
	require.NoError(t, handler.ProcessTask(context.Background(), settle))

	assert.Equal(t, []uuid.UUID{bookingID}, proc.refunds)
	assert.Equal(t, []uuid.UUID{bookingID}, proc.ratings)
	assert.Equal(t, []uuid.UUID{bookingID}, proc.settles)
}

func TestHandleTaskSkipsRetryForMissingBooking(t *testing.T) {
	proc := &fakeProcessor{err: fmt.Errorf("%w: booking gone", usecase.ErrNotFound)}
	handler := worker.HandleTask(proc, metrics.New(prometheus.NewRegistry()), zap.NewNop())

	task, err := worker.NewBookingTask(worker.TypeRefundCredit, uuid.New())
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleTaskRejectsBadPayload(t *testing.T) {
	handler := worker.HandleTask(&fakeProcessor{}, metrics.New(prometheus.NewRegistry()), zap.NewNop())

	err := handler.ProcessTask(context.Background(), asynq.NewTask(worker.TypeRefundCredit, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleTaskReturnsTransientErrors(t *testing.T) {
	proc := &fakeProcessor{failures: 1}
	handler := worker.HandleTask(proc, metrics.New(prometheus.NewRegistry()), zap.NewNop())

	task, err := worker.NewBookingTask(worker.TypeRatingApply, uuid.New())
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestMemoryQueueRetriesUntilSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &fakeProcessor{failures: 2}
	q := worker.NewMemoryQueue(retryConfig(), metrics.New(prometheus.NewRegistry()), zap.NewNop())
	q.Bind(proc)
	go q.Run(ctx)

	require.NoError(t, q.EnqueueRefund(ctx, uuid.New()))

	assert.Eventually(t, func() bool {
		refunds, _ := proc.counts()
		return refunds == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMemoryQueueDedupsPendingJobs(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}
	q := worker.NewMemoryQueue(retryConfig(), metrics.New(prometheus.NewRegistry()), zap.NewNop())
	q.Bind(proc)

	bookingID := uuid.New()
	require.NoError(t, q.EnqueueRatingApply(ctx, bookingID))
	require.NoError(t, q.EnqueueRatingApply(ctx, bookingID))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go q.Run(runCtx)

	assert.Eventually(t, func() bool {
		_, ratings := proc.counts()
		return ratings == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	_, ratings := proc.counts()
	assert.Equal(t, 1, ratings)
}

func TestReconcilerFindsUnfinishedSideEffects(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()

	seq := 0
	booking := func(mutate func(b *entity.Booking)) *entity.Booking {
		seq++
		b := &entity.Booking{
			BaseNoDelete:  entity.NewBaseNoDelete(now),
			BookingNumber: fmt.Sprintf("BK2501%04d", seq),
			UserID:        uuid.New(),
			ProviderID:    uuid.New(),
			SlotID:        uuid.New(),
			Date:          utils.DateOnly(now),
			StartTime:     "10:00",
			EndTime:       "10:30",
			VisitType:     entity.VisitClinic,
			PaymentMethod: entity.PaymentWallet,
			PaymentStatus: entity.PaymentStatusPaid,
			Status:        entity.BookingStatusConfirmed,
		}
		mutate(b)
		require.NoError(t, repo.Booking.Create(ctx, b))
		return b
	}

	unrefunded := booking(func(b *entity.Booking) { b.Status = entity.BookingStatusCancelled })
	rating := 4
	unrated := booking(func(b *entity.Booking) {
		b.Status = entity.BookingStatusCompleted
		b.Rating = &rating
	})
	refunded := booking(func(b *entity.Booking) {
		b.Status = entity.BookingStatusCancelled
		b.PaymentStatus = entity.PaymentStatusRefunded
	})

	// The refunded cancellation still holds its slot.
	slot := &entity.AvailabilitySlot{
		BaseNoDelete:    entity.NewBaseNoDelete(now),
		ProviderID:      refunded.ProviderID,
		Date:            refunded.Date,
		StartTime:       "10:00",
		EndTime:         "10:30",
		DurationMinutes: 30,
		VisitType:       entity.VisitClinic,
		Status:          entity.SlotBooked,
		BookingID:       &refunded.ID,
	}
	slot.ID = refunded.SlotID
	require.NoError(t, repo.Slot.Create(ctx, slot))

	q := &recordingQueue{}
	r := worker.NewReconciler(repo.Booking, q, retryConfig(), zap.NewNop())

	n, err := r.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uuid.UUID{unrefunded.ID}, q.refunds)
	assert.Equal(t, []uuid.UUID{unrated.ID}, q.ratings)
	assert.Equal(t, []uuid.UUID{refunded.ID}, q.settles)
}
