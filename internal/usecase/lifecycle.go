package usecase

import (
	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
)

// transitions lists the legal moves of the booking state machine. Terminal
// states have no entry.
var transitions = map[entity.BookingStatus][]entity.BookingStatus{
	entity.BookingStatusPending: {
		entity.BookingStatusConfirmed,
		entity.BookingStatusCancelled,
	},
	entity.BookingStatusConfirmed: {
		entity.BookingStatusCompleted,
		entity.BookingStatusCancelled,
		entity.BookingStatusNoShow,
	},
}

func canTransition(from, to entity.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// slotAfter is the slot status a booking transition leaves behind. The
// second result is false when the slot is untouched.
func slotAfter(to entity.BookingStatus) (entity.SlotStatus, bool) {
	switch to {
	case entity.BookingStatusCancelled:
		return entity.SlotAvailable, true
	case entity.BookingStatusCompleted, entity.BookingStatusNoShow:
		return entity.SlotCompleted, true
	}
	return "", false
}

// RunningAverage folds one new rating into a provider's aggregate without
// rescanning past reviews.
func RunningAverage(newRating int) repository.RatingFunc {
	return func(average float64, count int) (float64, int) {
		return (average*float64(count) + float64(newRating)) / float64(count+1), count + 1
	}
}
