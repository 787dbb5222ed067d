package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/data/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlot(providerID uuid.UUID, date time.Time, start string) *entity.AvailabilitySlot {
	now := time.Now().UTC()
	return &entity.AvailabilitySlot{
		BaseNoDelete:    entity.NewBaseNoDelete(now),
		ProviderID:      providerID,
		Date:            date,
		StartTime:       start,
		EndTime:         "10:30",
		DurationMinutes: 30,
		VisitType:       entity.VisitClinic,
		Status:          entity.SlotAvailable,
		Price:           100,
	}
}

func TestSlotCompareAndSwapHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	slot := newSlot(uuid.New(), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "10:00")
	require.NoError(t, repo.Slot.Create(ctx, slot))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bookingID := uuid.New()
			_, err := repo.Slot.CompareAndSwapStatus(ctx, slot.ID, entity.SlotAvailable, entity.SlotBooked, &bookingID)
			if err == nil {
				atomic.AddInt32(&wins, 1)
				return
			}
			assert.ErrorIs(t, err, repository.ErrStaleState)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)

	got, err := repo.Slot.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SlotBooked, got.Status)
	assert.NotNil(t, got.BookingID)
}

func TestSlotReleaseClearsBooking(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	slot := newSlot(uuid.New(), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "10:00")
	require.NoError(t, repo.Slot.Create(ctx, slot))

	bookingID := uuid.New()
	_, err := repo.Slot.CompareAndSwapStatus(ctx, slot.ID, entity.SlotAvailable, entity.SlotBooked, &bookingID)
	require.NoError(t, err)

	released, err := repo.Slot.CompareAndSwapStatus(ctx, slot.ID, entity.SlotBooked, entity.SlotAvailable, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.SlotAvailable, released.Status)
	assert.Nil(t, released.BookingID)
}

func TestSlotKeyIsUniqueAmongNonBlocked(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	providerID := uuid.New()
	date := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	first := newSlot(providerID, date, "10:00")
	require.NoError(t, repo.Slot.Create(ctx, first))
	assert.ErrorIs(t, repo.Slot.Create(ctx, newSlot(providerID, date, "10:00")), repository.ErrDuplicate)

	_, err := repo.Slot.CompareAndSwapStatus(ctx, first.ID, entity.SlotAvailable, entity.SlotBlocked, nil)
	require.NoError(t, err)
	assert.NoError(t, repo.Slot.Create(ctx, newSlot(providerID, date, "10:00")))

	n, err := repo.Slot.CreateBatch(ctx, []*entity.AvailabilitySlot{
		newSlot(providerID, date, "10:00"),
		newSlot(providerID, date, "10:30"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBookedSlotCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	slot := newSlot(uuid.New(), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "10:00")
	require.NoError(t, repo.Slot.Create(ctx, slot))

	bookingID := uuid.New()
	_, err := repo.Slot.CompareAndSwapStatus(ctx, slot.ID, entity.SlotAvailable, entity.SlotBooked, &bookingID)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Slot.Delete(ctx, slot.ID), repository.ErrStaleState)
}

func TestReferencedSlotCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	slot := newSlot(uuid.New(), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "10:00")
	require.NoError(t, repo.Slot.Create(ctx, slot))

	b := &entity.Booking{
		BaseNoDelete:  entity.NewBaseNoDelete(time.Now().UTC()),
		BookingNumber: "BK25010002",
		SlotID:        slot.ID,
		Status:        entity.BookingStatusConfirmed,
	}
	require.NoError(t, repo.Booking.Create(ctx, b))
	_, err := repo.Slot.CompareAndSwapStatus(ctx, slot.ID, entity.SlotAvailable, entity.SlotBooked, &b.ID)
	require.NoError(t, err)
	_, err = repo.Slot.CompareAndSwapStatus(ctx, slot.ID, entity.SlotBooked, entity.SlotCompleted, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Slot.Delete(ctx, slot.ID), repository.ErrStaleState)

	require.NoError(t, repo.Booking.Delete(ctx, b.ID))
	require.NoError(t, repo.Slot.Delete(ctx, slot.ID))
}

func TestWalletIsIdempotentPerReference(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()
	user := &entity.User{Base: entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}, Email: "a@b.c", WalletBalance: 50}
	require.NoError(t, repo.User.Create(ctx, user))

	ref := uuid.New()
	credit := &entity.WalletTransaction{
		BaseSimple:  entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		UserID:      user.ID,
		Type:        entity.WalletCredit,
		Amount:      100,
		ReferenceID: ref,
	}

	applied, err := repo.Wallet.Credit(ctx, credit)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.Wallet.Credit(ctx, credit)
	require.NoError(t, err)
	assert.False(t, applied)

	balance, err := repo.Wallet.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, balance)

	_, err = repo.Wallet.Debit(ctx, &entity.WalletTransaction{
		BaseSimple:  entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		UserID:      user.ID,
		Type:        entity.WalletDebit,
		Amount:      500,
		ReferenceID: uuid.New(),
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
}

func TestBookingTransitionRequiresExpectedState(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()
	b := &entity.Booking{
		BaseNoDelete:  entity.NewBaseNoDelete(now),
		BookingNumber: "BK25010001",
		Status:        entity.BookingStatusConfirmed,
	}
	require.NoError(t, repo.Booking.Create(ctx, b))

	_, err := repo.Booking.Transition(ctx, b.ID, entity.BookingStatusPending, entity.BookingPatch{
		Status: entity.BookingStatusConfirmed, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, repository.ErrStaleState)

	got, err := repo.Booking.Transition(ctx, b.ID, entity.BookingStatusConfirmed, entity.BookingPatch{
		Status: entity.BookingStatusCompleted, CompletedAt: &now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}
