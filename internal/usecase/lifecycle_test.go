package usecase

import (
	"testing"

	"clinic-booking/internal/data/entity"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	statuses := []entity.BookingStatus{
		entity.BookingStatusPending,
		entity.BookingStatusConfirmed,
		entity.BookingStatusCompleted,
		entity.BookingStatusCancelled,
		entity.BookingStatusNoShow,
	}
	legal := map[[2]entity.BookingStatus]bool{
		{entity.BookingStatusPending, entity.BookingStatusConfirmed}:   true,
		{entity.BookingStatusPending, entity.BookingStatusCancelled}:   true,
		{entity.BookingStatusConfirmed, entity.BookingStatusCompleted}: true,
		{entity.BookingStatusConfirmed, entity.BookingStatusCancelled}: true,
		{entity.BookingStatusConfirmed, entity.BookingStatusNoShow}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := legal[[2]entity.BookingStatus{from, to}]
			assert.Equal(t, want, canTransition(from, to), "%s -> %s", from, to)
		}
		if from.Terminal() {
			assert.Empty(t, transitions[from], "terminal status %s has exits", from)
		}
	}
}

func TestSlotAfter(t *testing.T) {
	to, ok := slotAfter(entity.BookingStatusCancelled)
	assert.True(t, ok)
	assert.Equal(t, entity.SlotAvailable, to)

	to, ok = slotAfter(entity.BookingStatusNoShow)
	assert.True(t, ok)
	assert.Equal(t, entity.SlotCompleted, to)

	_, ok = slotAfter(entity.BookingStatusConfirmed)
	assert.False(t, ok)
}

func TestRunningAverage(t *testing.T) {
	avg, count := 0.0, 0
	for _, r := range []int{5, 3, 4, 4, 1} {
		avg, count = RunningAverage(r)(avg, count)
	}
	assert.Equal(t, 5, count)
	assert.InDelta(t, 3.4, avg, 1e-9)
}
