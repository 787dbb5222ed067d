package memory

import (
	"context"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
)

type slotStore struct{ s *store }

// keyTaken mirrors the partial unique index on (provider, date, start) over
// non-blocked slots. Caller holds the lock.
func (r *slotStore) keyTaken(slot *entity.AvailabilitySlot) bool {
	if slot.Status == entity.SlotBlocked {
		return false
	}
	for _, s := range r.s.slots {
		if s.Status != entity.SlotBlocked &&
			s.ProviderID == slot.ProviderID &&
			sameDay(s.Date, slot.Date) &&
			s.StartTime == slot.StartTime {
			return true
		}
	}
	return false
}

func (r *slotStore) Create(_ context.Context, slot *entity.AvailabilitySlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.slots[slot.ID]; ok || r.keyTaken(slot) {
		return repository.ErrDuplicate
	}
	cp := *slot
	r.s.slots[slot.ID] = &cp
	return nil
}

func (r *slotStore) CreateBatch(_ context.Context, slots []*entity.AvailabilitySlot) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	created := 0
	for _, slot := range slots {
		if _, ok := r.s.slots[slot.ID]; ok || r.keyTaken(slot) {
			continue
		}
		cp := *slot
		r.s.slots[slot.ID] = &cp
		created++
	}
	return created, nil
}

func (r *slotStore) FindByID(_ context.Context, id uuid.UUID) (*entity.AvailabilitySlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.slots[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *slotStore) FindByKey(_ context.Context, providerID uuid.UUID, date time.Time, startTime string) (*entity.AvailabilitySlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, s := range r.s.slots {
		if s.Status != entity.SlotBlocked &&
			s.ProviderID == providerID &&
			sameDay(s.Date, date) &&
			s.StartTime == startTime {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *slotStore) matching(f repository.SlotFilter) []*entity.AvailabilitySlot {
	var out []*entity.AvailabilitySlot
	for _, s := range r.s.slots {
		if f.ProviderID != nil && s.ProviderID != *f.ProviderID {
			continue
		}
		if f.ClinicID != nil && (s.ClinicID == nil || *s.ClinicID != *f.ClinicID) {
			continue
		}
		if f.HospitalID != nil && (s.HospitalID == nil || *s.HospitalID != *f.HospitalID) {
			continue
		}
		if !inRange(s.Date, f.DateFrom, f.DateTo) {
			continue
		}
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		if f.VisitType != nil && s.VisitType != *f.VisitType {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortSlots(out)
	return out
}

func (r *slotStore) List(_ context.Context, filter repository.SlotFilter) ([]*entity.AvailabilitySlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.matching(filter), filter.Limit, filter.Offset), nil
}

func (r *slotStore) Count(_ context.Context, filter repository.SlotFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *slotStore) CompareAndSwapStatus(_ context.Context, id uuid.UUID, from, to entity.SlotStatus, bookingID *uuid.UUID) (*entity.AvailabilitySlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.slots[id]
	if !ok || s.Status != from {
		return nil, repository.ErrStaleState
	}
	if from == entity.SlotBlocked && r.keyTaken(&entity.AvailabilitySlot{
		ProviderID: s.ProviderID, Date: s.Date, StartTime: s.StartTime, Status: to,
	}) {
		return nil, repository.ErrDuplicate
	}
	s.Status = to
	switch {
	case to == entity.SlotAvailable:
		s.BookingID = nil
	case bookingID != nil:
		id := *bookingID
		s.BookingID = &id
	}
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	return &cp, nil
}

// Delete mirrors the bookings.slot_id foreign key: a slot any booking still
// points at stays.
func (r *slotStore) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.slots[id]
	if !ok || s.Status == entity.SlotBooked {
		return repository.ErrStaleState
	}
	for _, b := range r.s.bookings {
		if b.SlotID == id {
			return repository.ErrStaleState
		}
	}
	delete(r.s.slots, id)
	return nil
}
