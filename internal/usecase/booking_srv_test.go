package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWalletBookingPaysAndConfirms(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(500)

	b := h.mustBook(patient, slots["10:00"], "wallet")

	assert.Equal(t, entity.BookingStatusConfirmed, b.Status)
	assert.Equal(t, entity.PaymentStatusPaid, b.PaymentStatus)
	assert.Equal(t, 200.0, b.TotalPrice)
	assert.Equal(t, "Patient 1", b.Patient.Name)
	assert.Equal(t, 300.0, h.balance(patient))

	slot := h.slot(slots["10:00"])
	assert.Equal(t, entity.SlotBooked, slot.Status)
	require.NotNil(t, slot.BookingID)
	assert.Equal(t, b.ID, slot.BookingID.String())

	stored := h.booking(b.ID)
	require.NotNil(t, stored.Address)
	assert.Equal(t, "12 Quay Street", *stored.Address)
	assert.Equal(t, 1, h.reloadProvider(h.provider.ID).TotalPatients)
}

func TestCreateCashBookingFollowsAutoConfirm(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)

	b := h.mustBook(h.patient(0), slots["09:00"], "cash")
	assert.Equal(t, entity.BookingStatusConfirmed, b.Status)
	assert.Equal(t, entity.PaymentStatusPending, b.PaymentStatus)

	cfg := testConfig()
	cfg.App.AutoConfirmCash = false
	h = newHarnessWith(t, cfg)
	slots = h.publishSunday(h.provider)

	b = h.mustBook(h.patient(0), slots["09:00"], "cash")
	assert.Equal(t, entity.BookingStatusPending, b.Status)
	assert.Equal(t, entity.PaymentStatusPending, b.PaymentStatus)
}

func TestCancelWalletBookingReleasesSlotAndRefunds(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(200)

	b := h.mustBook(patient, slots["10:00"], "wallet")
	require.Equal(t, 0.0, h.balance(patient))

	cancelled, err := h.svc.Booking.CancelBooking(h.ctx, patient, b.ID, &request.CancelBookingRequest{
		Reason: strPtr("feeling better"),
	})
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, entity.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 200.0, h.balance(patient))

	slot := h.slot(slots["10:00"])
	assert.Equal(t, entity.SlotAvailable, slot.Status)
	assert.Nil(t, slot.BookingID)

	stored := h.booking(b.ID)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, entity.CancelByUser, *stored.CancelledBy)
	assert.Equal(t, entity.PaymentStatusRefunded, stored.PaymentStatus)

	// The freed slot can be booked again.
	h.mustBook(h.patient(0), slots["10:00"], "cash")
}

func TestCancelCashBookingDoesNotTouchWallet(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(50)

	b := h.mustBook(patient, slots["10:00"], "cash")
	cancelled, err := h.svc.Booking.CancelBooking(h.ctx, patient, b.ID, &request.CancelBookingRequest{})
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusPending, cancelled.PaymentStatus)
	assert.Equal(t, 50.0, h.balance(patient))
	assert.Empty(t, h.queue.refunds)
}

func TestConcurrentBookingsOfOneSlotHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)

	const attempts = 10
	patients := make([]utils.Actor, attempts)
	for i := range patients {
		patients[i] = h.patient(0)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range patients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.book(patients[i], slots["11:00"], "cash")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, usecase.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	bookings, err := h.repo.Booking.Count(h.ctx, repository.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), bookings)
}

func TestLimitedProviderAdmitsOnlyCapacity(t *testing.T) {
	h := newHarness(t)
	limited := h.newProvider(entity.ReceptionLimited, 2)
	slots := h.publishSunday(limited)

	starts := []string{"09:00", "09:30", "10:00", "10:30", "11:00"}
	patients := make([]utils.Actor, len(starts))
	for i := range patients {
		patients[i] = h.patient(0)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(starts))
	for i, start := range starts {
		wg.Add(1)
		go func(i int, slotID string) {
			defer wg.Done()
			_, errs[i] = h.book(patients[i], slotID, "cash")
		}(i, slots[start])
	}
	wg.Wait()

	admitted, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case assert.ErrorIs(t, err, usecase.ErrCapacityExceeded):
			rejected++
		}
	}
	assert.Equal(t, 2, admitted)
	assert.Equal(t, 3, rejected)

	count, err := h.repo.Booking.CountActiveByProviderDate(h.ctx, limited.ID, sunday)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Rejected bookings leave their slots available.
	available := 0
	for _, start := range starts {
		if h.slot(slots[start]).Status == entity.SlotAvailable {
			available++
		}
	}
	assert.Equal(t, 3, available)
}

func TestCancelFreesCapacity(t *testing.T) {
	h := newHarness(t)
	limited := h.newProvider(entity.ReceptionLimited, 1)
	slots := h.publishSunday(limited)
	patient := h.patient(0)

	b := h.mustBook(patient, slots["09:00"], "cash")
	_, err := h.book(h.patient(0), slots["09:30"], "cash")
	require.ErrorIs(t, err, usecase.ErrCapacityExceeded)

	_, err = h.svc.Booking.CancelBooking(h.ctx, patient, b.ID, &request.CancelBookingRequest{})
	require.NoError(t, err)

	h.mustBook(h.patient(0), slots["09:30"], "cash")
}

func TestCreateBookingRejectsProjectedKey(t *testing.T) {
	h := newHarness(t)
	listed, err := h.svc.Slot.ListSlots(h.ctx, &request.ListSlotsRequest{
		ProviderID: h.provider.ID.String(),
		Date:       sunday.Format("2006-01-02"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, listed)

	_, err = h.book(h.patient(0), listed[0].ID, "cash")
	assert.ErrorIs(t, err, usecase.ErrValidation)
}

func TestCreateBookingValidation(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(0)

	_, err := h.book(patient, slots["09:00"], "bitcoin")
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = h.book(patient, "not-a-slot", "cash")
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = h.book(patient, uuid.NewString(), "cash")
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	assert.Equal(t, entity.SlotAvailable, h.slot(slots["09:00"]).Status)
}

func TestInsufficientBalanceLeavesNoWrites(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(120)

	_, err := h.book(patient, slots["10:00"], "wallet")
	require.ErrorIs(t, err, usecase.ErrInsufficientBalance)

	assert.Equal(t, entity.SlotAvailable, h.slot(slots["10:00"]).Status)
	assert.Equal(t, 120.0, h.balance(patient))
	count, err := h.repo.Booking.Count(h.ctx, repository.BookingFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDiscountReducesTotal(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	require.NoError(t, h.repo.Discount.Create(h.ctx, &entity.Discount{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		Code:       "WELCOME25",
		Percent:    floatPtr(25),
		IsActive:   true,
	}))
	patient := h.patient(500)

	b, err := h.svc.Booking.CreateBooking(h.ctx, patient, &request.CreateBookingRequest{
		SlotID:        slots["09:00"],
		PaymentMethod: "wallet",
		DiscountCode:  strPtr("WELCOME25"),
	})
	require.NoError(t, err)

	assert.Equal(t, 200.0, b.Price)
	assert.Equal(t, 50.0, b.DiscountAmount)
	assert.Equal(t, 150.0, b.TotalPrice)
	assert.Equal(t, 350.0, h.balance(patient))

	_, err = h.svc.Booking.CreateBooking(h.ctx, patient, &request.CreateBookingRequest{
		SlotID:        slots["09:30"],
		PaymentMethod: "cash",
		DiscountCode:  strPtr("NOPE"),
	})
	assert.ErrorIs(t, err, usecase.ErrValidation)
}

func TestCancelCompletedBookingIsIllegal(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(200)

	b := h.mustBook(patient, slots["09:00"], "wallet")
	h.complete(b.ID)
	assert.Equal(t, entity.SlotCompleted, h.slot(slots["09:00"]).Status)

	_, err := h.svc.Booking.CancelBooking(h.ctx, patient, b.ID, &request.CancelBookingRequest{})
	require.ErrorIs(t, err, usecase.ErrIllegalTransition)

	stored := h.booking(b.ID)
	assert.Equal(t, entity.BookingStatusCompleted, stored.Status)
	assert.Equal(t, entity.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, 0.0, h.balance(patient))
}

func TestNoShowConsumesSlot(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)

	b := h.mustBook(h.patient(0), slots["09:00"], "cash")
	updated, err := h.svc.Booking.UpdateBookingStatus(h.ctx, h.admin, b.ID, &request.UpdateBookingStatusRequest{
		Status: string(entity.BookingStatusNoShow),
	})
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusNoShow, updated.Status)
	assert.Equal(t, entity.SlotCompleted, h.slot(slots["09:00"]).Status)
}

func TestConfirmPendingBooking(t *testing.T) {
	cfg := testConfig()
	cfg.App.AutoConfirmCash = false
	h := newHarnessWith(t, cfg)
	slots := h.publishSunday(h.provider)
	patient := h.patient(0)

	b := h.mustBook(patient, slots["09:00"], "cash")
	require.Equal(t, entity.BookingStatusPending, b.Status)

	_, err := h.svc.Booking.UpdateBookingStatus(h.ctx, patient, b.ID, &request.UpdateBookingStatusRequest{
		Status: string(entity.BookingStatusConfirmed),
	})
	require.ErrorIs(t, err, usecase.ErrForbidden)

	confirmed, err := h.svc.Booking.UpdateBookingStatus(h.ctx, h.admin, b.ID, &request.UpdateBookingStatusRequest{
		Status: string(entity.BookingStatusConfirmed),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Status)

	// pending -> completed is not an edge.
	other := h.mustBook(h.patient(0), slots["09:30"], "cash")
	_, err = h.svc.Booking.UpdateBookingStatus(h.ctx, h.admin, other.ID, &request.UpdateBookingStatusRequest{
		Status: string(entity.BookingStatusCompleted),
	})
	assert.ErrorIs(t, err, usecase.ErrIllegalTransition)
}

func TestPatientsOnlySeeTheirOwnBookings(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	alice, bob := h.patient(0), h.patient(0)

	mine := h.mustBook(alice, slots["09:00"], "cash")
	h.mustBook(bob, slots["09:30"], "cash")

	_, err := h.svc.Booking.GetBooking(h.ctx, bob, mine.ID)
	assert.ErrorIs(t, err, usecase.ErrForbidden)

	_, err = h.svc.Booking.CancelBooking(h.ctx, bob, mine.ID, &request.CancelBookingRequest{})
	assert.ErrorIs(t, err, usecase.ErrForbidden)

	list, err := h.svc.Booking.ListBookings(h.ctx, alice, &request.ListBookingsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, mine.ID, list.Data[0].ID)

	all, err := h.svc.Booking.ListBookings(h.ctx, h.admin, &request.ListBookingsRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Data, 2)
}

func TestReviewUpdatesProviderRating(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(0)

	first := h.mustBook(patient, slots["09:00"], "cash")
	second := h.mustBook(patient, slots["09:30"], "cash")

	_, err := h.svc.Booking.SubmitReview(h.ctx, patient, first.ID, &request.SubmitReviewRequest{Rating: 5})
	require.ErrorIs(t, err, usecase.ErrIllegalTransition, "only completed bookings can be reviewed")

	h.complete(first.ID)
	h.complete(second.ID)

	reviewed, err := h.svc.Booking.SubmitReview(h.ctx, patient, first.ID, &request.SubmitReviewRequest{
		Rating: 5,
		Review: strPtr("Very thorough"),
	})
	require.NoError(t, err)
	require.NotNil(t, reviewed.Rating)
	assert.Equal(t, 5, *reviewed.Rating)

	_, err = h.svc.Booking.SubmitReview(h.ctx, patient, second.ID, &request.SubmitReviewRequest{Rating: 2})
	require.NoError(t, err)

	p := h.reloadProvider(h.provider.ID)
	assert.Equal(t, 2, p.ReviewCount)
	assert.InDelta(t, 3.5, p.Rating, 1e-9)

	_, err = h.svc.Booking.SubmitReview(h.ctx, patient, first.ID, &request.SubmitReviewRequest{Rating: 1})
	require.ErrorIs(t, err, usecase.ErrIllegalTransition)

	p = h.reloadProvider(h.provider.ID)
	assert.Equal(t, 2, p.ReviewCount)
	assert.InDelta(t, 3.5, p.Rating, 1e-9)
}

func TestConcurrentReviewsAreSerializedPerProvider(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(0)

	starts := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	ids := make([]string, len(starts))
	for i, start := range starts {
		ids[i] = h.mustBook(patient, slots[start], "cash").ID
		h.complete(ids[i])
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(rating int, id string) {
			defer wg.Done()
			_, err := h.svc.Booking.SubmitReview(h.ctx, patient, id, &request.SubmitReviewRequest{Rating: rating})
			assert.NoError(t, err)
		}(i%5+1, id)
	}
	wg.Wait()

	// Ratings 1,2,3,4,5,1 average to 16/6.
	p := h.reloadProvider(h.provider.ID)
	assert.Equal(t, 6, p.ReviewCount)
	assert.InDelta(t, 16.0/6.0, p.Rating, 1e-9)
}

func TestFailedRatingUpdateIsDeferred(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(0)

	b := h.mustBook(patient, slots["09:00"], "cash")
	h.complete(b.ID)

	h.providers.failRating.Store(true)
	_, err := h.svc.Booking.SubmitReview(h.ctx, patient, b.ID, &request.SubmitReviewRequest{Rating: 4})
	require.NoError(t, err, "the review itself is stored")

	assert.Equal(t, []uuid.UUID{uuid.MustParse(b.ID)}, h.queue.ratings)
	assert.Equal(t, 0, h.reloadProvider(h.provider.ID).ReviewCount)

	h.providers.failRating.Store(false)
	require.NoError(t, h.svc.Booking.ApplyRating(h.ctx, uuid.MustParse(b.ID)))
	require.NoError(t, h.svc.Booking.ApplyRating(h.ctx, uuid.MustParse(b.ID)))

	p := h.reloadProvider(h.provider.ID)
	assert.Equal(t, 1, p.ReviewCount)
	assert.InDelta(t, 4.0, p.Rating, 1e-9)
}

func TestFailedRefundIsDeferredAndRetried(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(200)

	b := h.mustBook(patient, slots["10:00"], "wallet")

	h.wallet.failCredit.Store(true)
	cancelled, err := h.svc.Booking.CancelBooking(h.ctx, patient, b.ID, &request.CancelBookingRequest{})
	require.NoError(t, err, "the cancellation stands without the refund")

	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, entity.PaymentStatusPaid, cancelled.PaymentStatus)
	assert.Equal(t, entity.SlotAvailable, h.slot(slots["10:00"]).Status)
	assert.Equal(t, []uuid.UUID{uuid.MustParse(b.ID)}, h.queue.refunds)
	assert.Equal(t, 0.0, h.balance(patient))

	h.wallet.failCredit.Store(false)
	require.NoError(t, h.svc.Booking.ProcessRefund(h.ctx, uuid.MustParse(b.ID)))
	require.NoError(t, h.svc.Booking.ProcessRefund(h.ctx, uuid.MustParse(b.ID)))

	assert.Equal(t, 200.0, h.balance(patient))
	assert.Equal(t, entity.PaymentStatusRefunded, h.booking(b.ID).PaymentStatus)
}

func TestFailedSlotReleaseIsDeferredAndRetried(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(200)

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	events, err := h.broker.Subscribe(ctx, usecase.BookingStatusChannel)
	require.NoError(t, err)

	b := h.mustBook(patient, slots["10:00"], "wallet")
	id := uuid.MustParse(b.ID)
	<-events

	h.slotStore.failSettle.Store(true)
	cancelled, err := h.svc.Booking.CancelBooking(h.ctx, patient, b.ID, &request.CancelBookingRequest{})
	require.NoError(t, err, "the cancellation stands without the slot release")

	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, entity.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 200.0, h.balance(patient))
	assert.Equal(t, entity.SlotBooked, h.slot(slots["10:00"]).Status)
	assert.Equal(t, []uuid.UUID{id}, h.queue.settles)

	select {
	case raw := <-events:
		var e usecase.BookingStatusChanged
		require.NoError(t, json.Unmarshal(raw, &e))
		assert.Equal(t, entity.BookingStatusCancelled, e.To)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	unsettled, err := h.repo.Booking.FindUnsettledSlots(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsettled, 1)
	assert.Equal(t, id, unsettled[0].ID)

	h.slotStore.failSettle.Store(false)
	require.NoError(t, h.svc.Booking.SettleSlot(h.ctx, id))
	require.NoError(t, h.svc.Booking.SettleSlot(h.ctx, id))
	assert.Equal(t, entity.SlotAvailable, h.slot(slots["10:00"]).Status)

	unsettled, err = h.repo.Booking.FindUnsettledSlots(h.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unsettled)

	// A late settle leaves the slot alone once someone else holds it.
	h.mustBook(h.patient(0), slots["10:00"], "cash")
	require.NoError(t, h.svc.Booking.SettleSlot(h.ctx, id))
	assert.Equal(t, entity.SlotBooked, h.slot(slots["10:00"]).Status)
}

func TestRescheduleMovesBookingAndPayment(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(500)

	original := h.mustBook(patient, slots["10:00"], "wallet")

	moved, err := h.svc.Booking.RescheduleBooking(h.ctx, patient, original.ID, &request.RescheduleBookingRequest{
		NewSlotID: slots["11:30"],
	})
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, moved.ID)
	assert.Equal(t, "11:30", moved.StartTime)
	assert.Equal(t, entity.PaymentStatusPaid, moved.PaymentStatus)
	assert.Equal(t, 300.0, h.balance(patient), "payment carries over, nothing refunded or charged")

	old := h.booking(original.ID)
	assert.Equal(t, entity.BookingStatusCancelled, old.Status)
	require.NotNil(t, old.CancelReason)
	assert.Equal(t, "rescheduled", *old.CancelReason)
	require.NotNil(t, old.RescheduledTo)
	assert.Equal(t, moved.ID, old.RescheduledTo.String())

	replacement := h.booking(moved.ID)
	require.NotNil(t, replacement.RescheduledFrom)
	assert.Equal(t, original.ID, replacement.RescheduledFrom.String())

	assert.Equal(t, entity.SlotAvailable, h.slot(slots["10:00"]).Status)
	assert.Equal(t, entity.SlotBooked, h.slot(slots["11:30"]).Status)
	assert.Empty(t, h.queue.refunds)
}

func TestRescheduleToTakenSlotChangesNothing(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(0)

	original := h.mustBook(patient, slots["10:00"], "cash")
	h.mustBook(h.patient(0), slots["11:00"], "cash")

	_, err := h.svc.Booking.RescheduleBooking(h.ctx, patient, original.ID, &request.RescheduleBookingRequest{
		NewSlotID: slots["11:00"],
	})
	require.ErrorIs(t, err, usecase.ErrConflict)

	assert.Equal(t, entity.BookingStatusConfirmed, h.booking(original.ID).Status)
	assert.Equal(t, entity.SlotBooked, h.slot(slots["10:00"]).Status)
}

func TestAdminDeleteCancelsAndRemoves(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(200)

	b := h.mustBook(patient, slots["10:00"], "wallet")

	require.ErrorIs(t, h.svc.Booking.DeleteBooking(h.ctx, patient, b.ID), usecase.ErrForbidden)
	require.NoError(t, h.svc.Booking.DeleteBooking(h.ctx, h.admin, b.ID))

	found, err := h.repo.Booking.FindByID(h.ctx, uuid.MustParse(b.ID))
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, entity.SlotAvailable, h.slot(slots["10:00"]).Status)
	assert.Equal(t, 200.0, h.balance(patient))
}

func TestStatusChangesArePublished(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	events, err := h.broker.Subscribe(ctx, usecase.BookingStatusChannel)
	require.NoError(t, err)

	b := h.mustBook(h.patient(0), slots["09:00"], "cash")
	h.complete(b.ID)

	next := func() usecase.BookingStatusChanged {
		t.Helper()
		select {
		case raw := <-events:
			var e usecase.BookingStatusChanged
			require.NoError(t, json.Unmarshal(raw, &e))
			return e
		case <-time.After(time.Second):
			t.Fatal("no event published")
			return usecase.BookingStatusChanged{}
		}
	}

	created := next()
	assert.Equal(t, b.ID, created.BookingID)
	assert.Empty(t, created.From)
	assert.Equal(t, entity.BookingStatusConfirmed, created.To)
	assert.Equal(t, "patient", created.Actor)

	completed := next()
	assert.Equal(t, entity.BookingStatusConfirmed, completed.From)
	assert.Equal(t, entity.BookingStatusCompleted, completed.To)
	assert.Equal(t, "admin", completed.Actor)
}
