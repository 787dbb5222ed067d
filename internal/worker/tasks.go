// Package worker runs the out-of-band retries for booking side effects that
// failed inline: wallet refunds, provider rating updates and slot settles.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeRefundCredit = "refund:credit"
	TypeRatingApply  = "rating:apply"
	TypeSlotSettle   = "slot:settle"
)

// Processor performs the side effects. Every call must be idempotent, a task
// can be delivered more than once.
type Processor interface {
	ProcessRefund(ctx context.Context, bookingID uuid.UUID) error
	ApplyRating(ctx context.Context, bookingID uuid.UUID) error
	SettleSlot(ctx context.Context, bookingID uuid.UUID) error
}

type BookingPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
}

func NewBookingTask(taskType string, bookingID uuid.UUID) (*asynq.Task, error) {
	b, err := json.Marshal(BookingPayload{BookingID: bookingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, b), nil
}

// taskID dedups queued work: one pending job per task type and booking.
func taskID(taskType string, bookingID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", taskType, bookingID)
}

// dispatch routes a task type to the matching processor call.
func dispatch(ctx context.Context, proc Processor, taskType string, bookingID uuid.UUID) error {
	switch taskType {
	case TypeRefundCredit:
		return proc.ProcessRefund(ctx, bookingID)
	case TypeRatingApply:
		return proc.ApplyRating(ctx, bookingID)
	case TypeSlotSettle:
		return proc.SettleSlot(ctx, bookingID)
	default:
		return fmt.Errorf("unknown task type %q", taskType)
	}
}
