// Package memory holds process-local implementations of every repository.
// A single mutex serialises all access, which gives the same conditional
// update guarantees the Postgres implementations get from row locks.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
)

type store struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*entity.User
	sessions  map[uuid.UUID]*entity.Session
	clinics   map[uuid.UUID]*entity.Clinic
	providers map[uuid.UUID]*entity.Provider
	slots     map[uuid.UUID]*entity.AvailabilitySlot
	bookings  map[uuid.UUID]*entity.Booking
	walletTxs []*entity.WalletTransaction
	discounts map[string]*entity.Discount
	activity  []*entity.ActivityLog
}

// New returns a Repository whose members share one in-memory store.
func New() *repository.Repository {
	s := &store{
		users:     make(map[uuid.UUID]*entity.User),
		sessions:  make(map[uuid.UUID]*entity.Session),
		clinics:   make(map[uuid.UUID]*entity.Clinic),
		providers: make(map[uuid.UUID]*entity.Provider),
		slots:     make(map[uuid.UUID]*entity.AvailabilitySlot),
		bookings:  make(map[uuid.UUID]*entity.Booking),
		discounts: make(map[string]*entity.Discount),
	}
	return &repository.Repository{
		User:     &userRepo{s},
		Session:  &sessionRepo{s},
		Clinic:   &clinicRepo{s},
		Provider: &providerRepo{s},
		Slot:     &slotStore{s},
		Booking:  &bookingRepo{s},
		Wallet:   &walletRepo{s},
		Discount: &discountRepo{s},
		Activity: &activityRepo{s},
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func inRange(d time.Time, from, to *time.Time) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func sortSlots(slots []*entity.AvailabilitySlot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return strings.Compare(slots[i].StartTime, slots[j].StartTime) < 0
	})
}
