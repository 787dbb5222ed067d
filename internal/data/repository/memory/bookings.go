package memory

import (
	"context"
	"sort"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
)

type bookingRepo struct{ s *store }

func (r *bookingRepo) Create(_ context.Context, b *entity.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.bookings {
		if existing.ID == b.ID || existing.BookingNumber == b.BookingNumber {
			return repository.ErrDuplicate
		}
	}
	cp := *b
	r.s.bookings[b.ID] = &cp
	return nil
}

func (r *bookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *bookingRepo) matching(f repository.BookingFilter) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		if f.ProviderID != nil && b.ProviderID != *f.ProviderID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if !inRange(b.Date, f.DateFrom, f.DateTo) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *bookingRepo) List(_ context.Context, filter repository.BookingFilter) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.matching(filter), filter.Limit, filter.Offset), nil
}

func (r *bookingRepo) Count(_ context.Context, filter repository.BookingFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *bookingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[id]; !ok {
		return repository.ErrStaleState
	}
	delete(r.s.bookings, id)
	return nil
}

func (r *bookingRepo) CountActiveByProviderDate(_ context.Context, providerID uuid.UUID, date time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.bookings {
		if b.ProviderID != providerID || !sameDay(b.Date, date) {
			continue
		}
		if b.Status == entity.BookingStatusCancelled || b.Status == entity.BookingStatusNoShow {
			continue
		}
		n++
	}
	return n, nil
}

func (r *bookingRepo) Transition(_ context.Context, id uuid.UUID, from entity.BookingStatus, patch entity.BookingPatch) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.Status != from {
		return nil, repository.ErrStaleState
	}
	b.Status = patch.Status
	b.UpdatedAt = patch.UpdatedAt
	if patch.PaymentStatus != nil {
		b.PaymentStatus = *patch.PaymentStatus
	}
	if patch.CancelReason != nil {
		b.CancelReason = patch.CancelReason
	}
	if patch.CancelledBy != nil {
		b.CancelledBy = patch.CancelledBy
	}
	if patch.CancelledAt != nil {
		b.CancelledAt = patch.CancelledAt
	}
	if patch.CompletedAt != nil {
		b.CompletedAt = patch.CompletedAt
	}
	if patch.RescheduledTo != nil {
		b.RescheduledTo = patch.RescheduledTo
	}
	cp := *b
	return &cp, nil
}

func (r *bookingRepo) SetPaymentStatus(_ context.Context, id uuid.UUID, from, to entity.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.PaymentStatus != from {
		return repository.ErrStaleState
	}
	b.PaymentStatus = to
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *bookingRepo) AttachReview(_ context.Context, id uuid.UUID, rating int, review *string, at time.Time) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.Status != entity.BookingStatusCompleted || b.Rating != nil {
		return nil, repository.ErrStaleState
	}
	b.Rating = &rating
	b.Review = review
	b.ReviewedAt = &at
	b.UpdatedAt = at
	cp := *b
	return &cp, nil
}

func (r *bookingRepo) FindPendingRefunds(_ context.Context, limit int) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if b.NeedsRefund() {
			cp := *b
			out = append(out, &cp)
		}
	}
	return page(out, limit, 0), nil
}

func (r *bookingRepo) FindUnappliedRatings(_ context.Context, limit int) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if b.Rating != nil && !b.RatingApplied {
			cp := *b
			out = append(out, &cp)
		}
	}
	return page(out, limit, 0), nil
}

func (r *bookingRepo) FindUnsettledSlots(_ context.Context, limit int) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		switch b.Status {
		case entity.BookingStatusCancelled, entity.BookingStatusCompleted, entity.BookingStatusNoShow:
		default:
			continue
		}
		slot, ok := r.s.slots[b.SlotID]
		if !ok || slot.Status != entity.SlotBooked || slot.BookingID == nil || *slot.BookingID != b.ID {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return page(out, limit, 0), nil
}
