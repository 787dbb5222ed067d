package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const queueName = "side_effects"

// AsynqQueue enqueues retry jobs into Redis.
type AsynqQueue struct {
	client   *asynq.Client
	maxRetry int
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewAsynqQueue(opt asynq.RedisClientOpt, cfg utils.RetryConfig, m *metrics.Metrics, log *zap.Logger) *AsynqQueue {
	return &AsynqQueue{
		client:   asynq.NewClient(opt),
		maxRetry: cfg.QueueMaxRetry,
		metrics:  m,
		log:      log.With(zap.String("component", "asynq_queue")),
	}
}

func (q *AsynqQueue) EnqueueRefund(ctx context.Context, bookingID uuid.UUID) error {
	return q.enqueue(ctx, TypeRefundCredit, bookingID)
}

func (q *AsynqQueue) EnqueueRatingApply(ctx context.Context, bookingID uuid.UUID) error {
	return q.enqueue(ctx, TypeRatingApply, bookingID)
}

func (q *AsynqQueue) EnqueueSlotSettle(ctx context.Context, bookingID uuid.UUID) error {
	return q.enqueue(ctx, TypeSlotSettle, bookingID)
}

func (q *AsynqQueue) enqueue(ctx context.Context, taskType string, bookingID uuid.UUID) error {
	task, err := NewBookingTask(taskType, bookingID)
	if err != nil {
		return fmt.Errorf("build %s task: %w", taskType, err)
	}

	info, err := q.client.EnqueueContext(ctx, task,
		asynq.TaskID(taskID(taskType, bookingID)),
		asynq.Queue(queueName),
		asynq.MaxRetry(q.maxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		q.metrics.RetryJobs.WithLabelValues(taskType, "duplicate").Inc()
		return nil
	}
	if err != nil {
		q.metrics.RetryJobs.WithLabelValues(taskType, "enqueue_failed").Inc()
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	q.metrics.RetryJobs.WithLabelValues(taskType, "enqueued").Inc()
	q.log.Info("Retry job enqueued",
		zap.String("task", taskType),
		zap.String("task_id", info.ID),
		zap.String("booking_id", bookingID.String()),
	)
	return nil
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}

// Server consumes retry jobs from Redis.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.Logger
}

func NewServer(opt asynq.RedisClientOpt, proc Processor, m *metrics.Metrics, log *zap.Logger) *Server {
	log = log.With(zap.String("component", "asynq_server"))

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			queueName: 1,
		},
		Logger: log.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn("Retry job failed",
				zap.String("task", task.Type()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRefundCredit, HandleTask(proc, m, log))
	mux.HandleFunc(TypeRatingApply, HandleTask(proc, m, log))
	mux.HandleFunc(TypeSlotSettle, HandleTask(proc, m, log))

	return &Server{srv: srv, mux: mux, log: log}
}

// Start runs the consumer in the background.
func (s *Server) Start() error {
	s.log.Info("Starting retry worker", zap.String("queue", queueName))
	return s.srv.Start(s.mux)
}

func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

// HandleTask decodes a booking payload and hands it to the processor. A
// booking that no longer exists is not retried.
func HandleTask(proc Processor, m *metrics.Metrics, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p BookingPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Error("Invalid retry payload", zap.String("task", task.Type()), zap.Error(err))
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}

		err := dispatch(ctx, proc, task.Type(), p.BookingID)
		switch {
		case err == nil:
			m.RetryJobs.WithLabelValues(task.Type(), "processed").Inc()
			log.Info("Retry job processed",
				zap.String("task", task.Type()),
				zap.String("booking_id", p.BookingID.String()),
			)
			return nil
		case errors.Is(err, usecase.ErrNotFound):
			m.RetryJobs.WithLabelValues(task.Type(), "dropped").Inc()
			log.Warn("Dropping retry job for missing booking",
				zap.String("task", task.Type()),
				zap.String("booking_id", p.BookingID.String()),
			)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			m.RetryJobs.WithLabelValues(task.Type(), "failed").Inc()
			return err
		}
	}
}
