package usecase

import (
	"context"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/messaging"
	"clinic-booking/pkg/metrics"

	"go.uber.org/zap"
)

// BookingStatusChannel is where BookingStatusChanged events are published.
const BookingStatusChannel = "booking.status_changed"

// BookingStatusChanged is emitted after every committed transition. From is
// empty for a newly created booking.
type BookingStatusChanged struct {
	BookingID     string               `json:"booking_id"`
	BookingNumber string               `json:"booking_number"`
	UserID        string               `json:"user_id"`
	ProviderID    string               `json:"provider_id"`
	SlotID        string               `json:"slot_id"`
	From          entity.BookingStatus `json:"from,omitempty"`
	To            entity.BookingStatus `json:"to"`
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	Actor         string               `json:"actor"`
	Reason        *string              `json:"reason,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

type eventPublisher struct {
	broker  messaging.Broker
	metrics *metrics.Metrics
	log     *zap.Logger
}

// statusChanged never fails the caller: the transition is already committed.
func (p *eventPublisher) statusChanged(ctx context.Context, b *entity.Booking, from entity.BookingStatus, actor string, reason *string, at time.Time) {
	event := BookingStatusChanged{
		BookingID:     b.ID.String(),
		BookingNumber: b.BookingNumber,
		UserID:        b.UserID.String(),
		ProviderID:    b.ProviderID.String(),
		SlotID:        b.SlotID.String(),
		From:          from,
		To:            b.Status,
		PaymentStatus: b.PaymentStatus,
		Actor:         actor,
		Reason:        reason,
		OccurredAt:    at,
	}

	if from != "" {
		p.metrics.BookingTransitions.WithLabelValues(string(from), string(b.Status)).Inc()
	}

	if err := p.broker.Publish(ctx, BookingStatusChannel, event); err != nil {
		p.metrics.EventsFailed.Inc()
		p.log.Warn("Failed to publish booking status event",
			zap.Error(err),
			zap.String("booking_id", event.BookingID),
			zap.String("to", string(event.To)),
		)
	}
}
