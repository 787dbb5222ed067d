package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("retry queue is full")

type memoryJob struct {
	taskType  string
	bookingID uuid.UUID
	attempt   int
	backoff   backoff.BackOff
}

// MemoryQueue is the in-process retry queue used when Redis is disabled.
// Jobs are lost on restart; the reconciler finds them again from the
// booking table.
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[string]bool
	proc    Processor
	jobs    chan *memoryJob
	cfg     utils.RetryConfig
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewMemoryQueue(cfg utils.RetryConfig, m *metrics.Metrics, log *zap.Logger) *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[string]bool),
		jobs:    make(chan *memoryJob, 1024),
		cfg:     cfg,
		metrics: m,
		log:     log.With(zap.String("component", "memory_queue")),
	}
}

// Bind sets the processor. The queue is built before the services that
// enqueue into it, so the processor arrives later.
func (q *MemoryQueue) Bind(proc Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.proc = proc
}

func (q *MemoryQueue) EnqueueRefund(_ context.Context, bookingID uuid.UUID) error {
	return q.enqueue(TypeRefundCredit, bookingID)
}

func (q *MemoryQueue) EnqueueRatingApply(_ context.Context, bookingID uuid.UUID) error {
	return q.enqueue(TypeRatingApply, bookingID)
}

func (q *MemoryQueue) EnqueueSlotSettle(_ context.Context, bookingID uuid.UUID) error {
	return q.enqueue(TypeSlotSettle, bookingID)
}

func (q *MemoryQueue) enqueue(taskType string, bookingID uuid.UUID) error {
	id := taskID(taskType, bookingID)

	q.mu.Lock()
	if q.pending[id] {
		q.mu.Unlock()
		q.metrics.RetryJobs.WithLabelValues(taskType, "duplicate").Inc()
		return nil
	}
	q.pending[id] = true
	q.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.InitialInterval
	b.MaxInterval = q.cfg.MaxInterval
	b.MaxElapsedTime = 0

	job := &memoryJob{taskType: taskType, bookingID: bookingID, backoff: b}
	select {
	case q.jobs <- job:
		q.metrics.RetryJobs.WithLabelValues(taskType, "enqueued").Inc()
		return nil
	default:
		q.done(id)
		q.metrics.RetryJobs.WithLabelValues(taskType, "enqueue_failed").Inc()
		return fmt.Errorf("enqueue %s: %w", taskType, ErrQueueFull)
	}
}

func (q *MemoryQueue) done(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, id)
}

// Run processes jobs until ctx is cancelled.
func (q *MemoryQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *MemoryQueue) process(ctx context.Context, job *memoryJob) {
	id := taskID(job.taskType, job.bookingID)

	q.mu.Lock()
	proc := q.proc
	q.mu.Unlock()
	if proc == nil {
		q.log.Error("Retry job dropped, no processor bound", zap.String("task", job.taskType))
		q.done(id)
		return
	}

	job.attempt++
	err := dispatch(ctx, proc, job.taskType, job.bookingID)
	switch {
	case err == nil:
		q.metrics.RetryJobs.WithLabelValues(job.taskType, "processed").Inc()
		q.done(id)
		return
	case errors.Is(err, usecase.ErrNotFound):
		q.metrics.RetryJobs.WithLabelValues(job.taskType, "dropped").Inc()
		q.done(id)
		return
	case job.attempt > q.cfg.QueueMaxRetry:
		q.metrics.RetryJobs.WithLabelValues(job.taskType, "exhausted").Inc()
		q.log.Error("Retry job exhausted",
			zap.String("task", job.taskType),
			zap.String("booking_id", job.bookingID.String()),
			zap.Int("attempts", job.attempt),
			zap.Error(err),
		)
		q.done(id)
		return
	}

	q.metrics.RetryJobs.WithLabelValues(job.taskType, "failed").Inc()
	wait := job.backoff.NextBackOff()
	q.log.Warn("Retry job failed, rescheduling",
		zap.String("task", job.taskType),
		zap.String("booking_id", job.bookingID.String()),
		zap.Int("attempt", job.attempt),
		zap.Duration("wait", wait),
		zap.Error(err),
	)
	time.AfterFunc(wait, func() {
		select {
		case q.jobs <- job:
		default:
			q.log.Error("Retry job dropped, queue full", zap.String("task", job.taskType))
			q.done(id)
		}
	})
}
