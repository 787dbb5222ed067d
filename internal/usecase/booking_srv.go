package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/scheduling"
	"clinic-booking/pkg/lock"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const rescheduledReason = "rescheduled"

type BookingService interface {
	// Patient endpoints
	CreateBooking(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	ListBookings(ctx context.Context, actor utils.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetBooking(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, actor utils.Actor, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error)
	RescheduleBooking(ctx context.Context, actor utils.Actor, bookingID string, req *request.RescheduleBookingRequest) (*response.BookingResponse, error)
	SubmitReview(ctx context.Context, actor utils.Actor, bookingID string, req *request.SubmitReviewRequest) (*response.BookingResponse, error)

	// Admin endpoints
	UpdateBookingStatus(ctx context.Context, actor utils.Actor, bookingID string, req *request.UpdateBookingStatusRequest) (*response.BookingResponse, error)
	DeleteBooking(ctx context.Context, actor utils.Actor, bookingID string) error

	// Side effects, also driven by the retry worker. All are idempotent.
	ProcessRefund(ctx context.Context, bookingID uuid.UUID) error
	ApplyRating(ctx context.Context, bookingID uuid.UUID) error
	SettleSlot(ctx context.Context, bookingID uuid.UUID) error
}

type bookingService struct {
	repo     *repository.Repository
	config   *utils.Config
	locker   lock.Locker
	queue    RetryQueue
	events   *eventPublisher
	retry    inlineRetry
	metrics  *metrics.Metrics
	clock    func() time.Time
	activity *activityRecorder
	log      *zap.Logger
}

func NewBookingService(
	repo *repository.Repository,
	config *utils.Config,
	deps Dependencies,
	activity *activityRecorder,
	log *zap.Logger,
) BookingService {
	log = log.With(zap.String("service", "booking"))
	return &bookingService{
		repo:   repo,
		config: config,
		locker: deps.Locker,
		queue:  deps.Queue,
		events: &eventPublisher{
			broker:  deps.Broker,
			metrics: deps.Metrics,
			log:     log,
		},
		retry:    inlineRetry{cfg: config.Retry, log: log},
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		activity: activity,
		log:      log,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, actor utils.Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}
	if scheduling.IsProjectedKey(req.SlotID) {
		return nil, fmt.Errorf("%w: slot %s is a projection, materialize it before booking", ErrValidation, req.SlotID)
	}

	slotID, err := parseID("slot", req.SlotID)
	if err != nil {
		return nil, err
	}
	slot, err := s.repo.Slot.FindByID(ctx, slotID)
	if err != nil {
		s.log.Error("Failed to find slot", zap.Error(err), zap.String("slot_id", req.SlotID))
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %s", ErrNotFound, req.SlotID)
	}
	if slot.Status != entity.SlotAvailable {
		s.metrics.SlotConflicts.Inc()
		return nil, fmt.Errorf("%w: slot %s is no longer available", ErrConflict, req.SlotID)
	}
	if s.started(slot) {
		return nil, fmt.Errorf("%w: slot %s has already started", ErrValidation, req.SlotID)
	}

	user, err := s.repo.User.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}

	provider, err := s.findProvider(ctx, slot.ProviderID)
	if err != nil {
		return nil, err
	}

	booking, discount, err := s.newBooking(ctx, user, slot, req)
	if err != nil {
		return nil, err
	}

	admit := func(ctx context.Context) error {
		if err := s.checkCapacity(ctx, provider, slot.Date); err != nil {
			return err
		}
		return s.admit(ctx, slot, booking)
	}
	if err := s.guardCapacity(ctx, provider, slot.Date, admit); err != nil {
		s.log.Info("Booking rejected",
			zap.Error(err),
			zap.String("slot_id", req.SlotID),
			zap.String("user_id", actor.UserID.String()),
		)
		return nil, err
	}

	if discount != nil {
		if err := s.repo.Discount.Redeem(ctx, discount.ID); err != nil {
			s.log.Warn("Failed to redeem discount", zap.Error(err), zap.String("code", discount.Code))
		}
	}
	if err := s.repo.Provider.IncrementPatients(ctx, provider.ID); err != nil {
		s.log.Warn("Failed to increment provider patients", zap.Error(err), zap.String("provider_id", provider.ID.String()))
	}

	s.metrics.BookingsCreated.WithLabelValues(string(booking.PaymentMethod)).Inc()
	s.events.statusChanged(ctx, booking, "", actorName(actor), nil, booking.CreatedAt)
	s.activity.record(ctx, actor, "booking.create", "booking", booking.ID, booking.BookingNumber)

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_number", booking.BookingNumber),
		zap.String("slot_id", slot.ID.String()),
		zap.String("status", string(booking.Status)),
		zap.String("payment_method", string(booking.PaymentMethod)),
		zap.Float64("total_price", booking.TotalPrice),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// newBooking assembles the booking row: patient snapshot, address, discount
// and the initial status pair.
func (s *bookingService) newBooking(ctx context.Context, user *entity.User, slot *entity.AvailabilitySlot, req *request.CreateBookingRequest) (*entity.Booking, *entity.Discount, error) {
	now := s.clock()

	email := user.Email
	patient := entity.PatientSnapshot{
		Name:   user.Name,
		Email:  &email,
		Age:    req.PatientAge,
		Gender: req.PatientGender,
	}
	if user.Phone != nil {
		patient.Phone = *user.Phone
	}
	if req.PatientName != nil {
		patient.Name = *req.PatientName
	}
	if req.PatientPhone != nil {
		patient.Phone = *req.PatientPhone
	}
	if req.PatientEmail != nil {
		patient.Email = req.PatientEmail
	}
	if strings.TrimSpace(patient.Name) == "" || strings.TrimSpace(patient.Phone) == "" {
		return nil, nil, fmt.Errorf("%w: patient name and phone are required", ErrValidation)
	}

	address := req.Address
	switch {
	case slot.VisitType == entity.VisitHome:
		if address == nil || strings.TrimSpace(*address) == "" {
			return nil, nil, fmt.Errorf("%w: home visits need an address", ErrValidation)
		}
	case address == nil && slot.ClinicID != nil:
		clinic, err := s.repo.Clinic.FindByID(ctx, *slot.ClinicID)
		if err != nil {
			return nil, nil, fmt.Errorf("find clinic: %w", err)
		}
		if clinic != nil && clinic.Address != "" {
			address = &clinic.Address
		}
	}

	var discount *entity.Discount
	var discountAmount float64
	if req.DiscountCode != nil && *req.DiscountCode != "" {
		d, err := s.repo.Discount.FindByCode(ctx, *req.DiscountCode)
		if err != nil {
			return nil, nil, fmt.Errorf("find discount: %w", err)
		}
		if d == nil || !d.Usable(now) {
			return nil, nil, fmt.Errorf("%w: discount code %q is not valid", ErrValidation, *req.DiscountCode)
		}
		discount = d
		discountAmount = d.Apply(slot.Price)
	}

	method := entity.PaymentMethod(req.PaymentMethod)
	status, payment := entity.BookingStatusPending, entity.PaymentStatusPending
	switch {
	case method == entity.PaymentWallet:
		status, payment = entity.BookingStatusConfirmed, entity.PaymentStatusPaid
	case s.config.App.AutoConfirmCash:
		status = entity.BookingStatusConfirmed
	}

	booking := &entity.Booking{
		BaseNoDelete:   entity.NewBaseNoDelete(now),
		BookingNumber:  utils.GenerateBookingNumber(now),
		UserID:         user.ID,
		ProviderID:     slot.ProviderID,
		SlotID:         slot.ID,
		ClinicID:       slot.ClinicID,
		HospitalID:     slot.HospitalID,
		Patient:        patient,
		Date:           slot.Date,
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		VisitType:      slot.VisitType,
		Address:        address,
		Symptoms:       req.Symptoms,
		Notes:          req.Notes,
		Price:          slot.Price,
		DiscountAmount: discountAmount,
		TotalPrice:     math.Round((slot.Price-discountAmount)*100) / 100,
		PaymentMethod:  method,
		PaymentStatus:  payment,
		Status:         status,
	}
	if discount != nil {
		booking.DiscountCode = &discount.Code
	}
	return booking, discount, nil
}

// guardCapacity runs fn under the provider/day lock when the provider caps
// daily bookings, so counting and admitting cannot interleave.
func (s *bookingService) guardCapacity(ctx context.Context, provider *entity.Provider, date time.Time, fn func(ctx context.Context) error) error {
	if !provider.IsLimited() {
		return fn(ctx)
	}

	key := fmt.Sprintf("capacity:%s:%s", provider.ID, date.Format("2006-01-02"))
	err := s.locker.WithLock(ctx, key, fn)
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return fmt.Errorf("%w: provider schedule is busy, try again", ErrConflict)
	}
	return err
}

func (s *bookingService) checkCapacity(ctx context.Context, provider *entity.Provider, date time.Time) error {
	if !provider.IsLimited() {
		return nil
	}
	count, err := s.repo.Booking.CountActiveByProviderDate(ctx, provider.ID, date)
	if err != nil {
		return fmt.Errorf("count provider bookings: %w", err)
	}
	if count >= provider.ReceptionCapacity {
		s.metrics.CapacityRejections.Inc()
		return fmt.Errorf("%w: provider is fully booked on %s", ErrCapacityExceeded, date.Format("2006-01-02"))
	}
	return nil
}

// admit claims the slot, takes payment and inserts the booking. Each failure
// undoes the steps before it, so a rejected booking leaves no writes behind.
func (s *bookingService) admit(ctx context.Context, slot *entity.AvailabilitySlot, booking *entity.Booking) error {
	if err := s.claim(ctx, slot.ID, booking.ID); err != nil {
		return err
	}

	debited := false
	if booking.PaymentMethod == entity.PaymentWallet && booking.TotalPrice > 0 {
		_, err := s.repo.Wallet.Debit(ctx, &entity.WalletTransaction{
			BaseSimple:  entity.BaseSimple{ID: uuid.New(), CreatedAt: s.clock()},
			UserID:      booking.UserID,
			Type:        entity.WalletDebit,
			Amount:      booking.TotalPrice,
			Description: fmt.Sprintf("Payment for booking %s", booking.BookingNumber),
			ReferenceID: booking.ID,
		})
		if err != nil {
			s.releaseClaim(ctx, slot.ID)
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return fmt.Errorf("%w: %.2f required", ErrInsufficientBalance, booking.TotalPrice)
			}
			return fmt.Errorf("debit wallet: %w", err)
		}
		debited = true
	}

	if err := s.insert(ctx, booking); err != nil {
		if debited {
			s.reverseDebit(ctx, booking)
		}
		s.releaseClaim(ctx, slot.ID)
		return err
	}
	return nil
}

func (s *bookingService) claim(ctx context.Context, slotID, bookingID uuid.UUID) error {
	_, err := s.repo.Slot.CompareAndSwapStatus(ctx, slotID, entity.SlotAvailable, entity.SlotBooked, &bookingID)
	if errors.Is(err, repository.ErrStaleState) {
		s.metrics.SlotConflicts.Inc()
		return fmt.Errorf("%w: slot %s is no longer available", ErrConflict, slotID)
	}
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	return nil
}

func (s *bookingService) releaseClaim(ctx context.Context, slotID uuid.UUID) {
	if err := s.settleSlot(ctx, slotID, entity.SlotAvailable); err != nil {
		s.log.Error("Failed to release claimed slot", zap.Error(err), zap.String("slot_id", slotID.String()))
	}
}

// insert retries on a booking number collision with a fresh number.
func (s *bookingService) insert(ctx context.Context, booking *entity.Booking) error {
	for attempt := 1; ; attempt++ {
		err := s.repo.Booking.Create(ctx, booking)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt == 3 {
			s.log.Error("Failed to insert booking", zap.Error(err), zap.String("booking_id", booking.ID.String()))
			return fmt.Errorf("create booking: %w", err)
		}
		booking.BookingNumber = utils.GenerateBookingNumber(s.clock())
	}
}

func (s *bookingService) reverseDebit(ctx context.Context, booking *entity.Booking) {
	err := s.retry.do(ctx, "reverse_debit", func() error {
		_, err := s.repo.Wallet.Credit(ctx, &entity.WalletTransaction{
			BaseSimple:  entity.BaseSimple{ID: uuid.New(), CreatedAt: s.clock()},
			UserID:      booking.UserID,
			Type:        entity.WalletCredit,
			Amount:      booking.TotalPrice,
			Description: fmt.Sprintf("Reversal for failed booking %s", booking.BookingNumber),
			ReferenceID: booking.ID,
		})
		return err
	})
	if err != nil {
		s.log.Error("Failed to reverse wallet debit",
			zap.Error(err),
			zap.String("user_id", booking.UserID.String()),
			zap.String("reference_id", booking.ID.String()),
			zap.Float64("amount", booking.TotalPrice),
		)
	}
}

// settleSlot moves a booked slot on. A slot that is no longer booked is left
// alone.
func (s *bookingService) settleSlot(ctx context.Context, slotID uuid.UUID, to entity.SlotStatus) error {
	err := s.retry.do(ctx, "settle_slot", func() error {
		_, err := s.repo.Slot.CompareAndSwapStatus(ctx, slotID, entity.SlotBooked, to, nil)
		if errors.Is(err, repository.ErrStaleState) {
			return backoff.Permanent(err)
		}
		return err
	})
	if errors.Is(err, repository.ErrStaleState) {
		s.log.Warn("Slot was not booked, leaving it as is",
			zap.String("slot_id", slotID.String()),
			zap.String("to", string(to)),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle slot %s: %w", slotID, err)
	}
	return nil
}

func (s *bookingService) started(slot *entity.AvailabilitySlot) bool {
	now := s.clock().In(s.config.Location())
	today := utils.DateOnly(now)
	if slot.Date.Before(today) {
		return true
	}
	if !slot.Date.Equal(today) {
		return false
	}
	start, err := scheduling.ParseTimeOfDay(slot.StartTime)
	return err == nil && start <= scheduling.At(now)
}

func (s *bookingService) findProvider(ctx context.Context, id uuid.UUID) (*entity.Provider, error) {
	provider, err := s.repo.Provider.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if provider == nil || !provider.IsActive {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}
	return provider, nil
}

func (s *bookingService) findBooking(ctx context.Context, bookingID string) (*entity.Booking, error) {
	id, err := parseID("booking", bookingID)
	if err != nil {
		return nil, err
	}
	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to find booking", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	return booking, nil
}

// accessibleBooking loads a booking the actor owns. Admins can reach any.
func (s *bookingService) accessibleBooking(ctx context.Context, actor utils.Actor, bookingID string) (*entity.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: booking %s belongs to another user", ErrForbidden, bookingID)
	}
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, actor utils.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	normalizePage(&req.PaginatedRequest)
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	filter := repository.BookingFilter{
		Limit:  req.Limit(),
		Offset: req.Offset(),
	}
	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.UserID = &userID
	}
	if req.Status != "" {
		status := entity.BookingStatus(req.Status)
		filter.Status = &status
	}

	var err error
	if filter.ProviderID, err = parseOptionalID("provider", req.ProviderID); err != nil {
		return nil, err
	}
	if filter.DateFrom, err = parseOptionalDate("start_date", req.StartDate); err != nil {
		return nil, err
	}
	if filter.DateTo, err = parseOptionalDate("end_date", req.EndDate); err != nil {
		return nil, err
	}

	bookings, err := s.repo.Booking.List(ctx, filter)
	if err != nil {
		s.log.Error("Failed to list bookings", zap.Error(err))
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	total, err := s.repo.Booking.Count(ctx, filter)
	if err != nil {
		s.log.Error("Failed to count bookings", zap.Error(err))
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	data := make([]response.BookingResponse, len(bookings))
	for i, b := range bookings {
		data[i] = response.BookingToResponse(b)
	}

	return response.NewPaginatedResponse(data, req.Page, req.PerPage, total), nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.accessibleBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, actor utils.Actor, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	booking, err := s.accessibleBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, booking, entity.BookingStatusCancelled, actor, req.Reason)
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(updated)
	return &resp, nil
}

func (s *bookingService) UpdateBookingStatus(ctx context.Context, actor utils.Actor, bookingID string, req *request.UpdateBookingStatusRequest) (*response.BookingResponse, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, booking, entity.BookingStatus(req.Status), actor, req.Reason)
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(updated)
	return &resp, nil
}

// transition is the single path for confirm, cancel, complete and no-show.
func (s *bookingService) transition(ctx context.Context, booking *entity.Booking, to entity.BookingStatus, actor utils.Actor, reason *string) (*entity.Booking, error) {
	if !canTransition(booking.Status, to) {
		return nil, fmt.Errorf("%w: cannot move a %s booking to %s", ErrIllegalTransition, booking.Status, to)
	}

	now := s.clock()
	patch := entity.BookingPatch{Status: to, UpdatedAt: now}
	switch to {
	case entity.BookingStatusCancelled:
		by := cancelActor(actor)
		patch.CancelledBy = &by
		patch.CancelledAt = &now
		patch.CancelReason = reason
	case entity.BookingStatusCompleted:
		patch.CompletedAt = &now
	}

	updated, err := s.commit(ctx, booking, patch, actor, reason)
	if err != nil {
		return nil, err
	}

	s.activity.record(ctx, actor, "booking."+string(to), "booking", booking.ID, booking.BookingNumber)
	s.log.Info("Booking status changed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(to)),
		zap.String("payment_status", string(updated.PaymentStatus)),
	)
	return updated, nil
}

// commit applies patch if the booking is still in its loaded status, then
// settles the slot, refunds a cancelled wallet payment and publishes the
// event. Once the status change is committed the later steps never fail the
// call; a slot that could not be settled is handed to the retry queue.
func (s *bookingService) commit(ctx context.Context, booking *entity.Booking, patch entity.BookingPatch, actor utils.Actor, reason *string) (*entity.Booking, error) {
	updated, err := s.repo.Booking.Transition(ctx, booking.ID, booking.Status, patch)
	if errors.Is(err, repository.ErrStaleState) {
		current, ferr := s.repo.Booking.FindByID(ctx, booking.ID)
		if ferr == nil && current != nil {
			return nil, fmt.Errorf("%w: booking is already %s", ErrIllegalTransition, current.Status)
		}
		return nil, fmt.Errorf("%w: booking %s changed concurrently", ErrConflict, booking.ID)
	}
	if err != nil {
		s.log.Error("Failed to transition booking", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		return nil, fmt.Errorf("transition booking: %w", err)
	}

	if to, ok := slotAfter(patch.Status); ok {
		if err := s.settleSlot(ctx, updated.SlotID, to); err != nil {
			s.log.Error("Booking transitioned but slot was not settled, deferring to retry queue",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
				zap.String("slot_id", updated.SlotID.String()),
			)
			if qerr := s.queue.EnqueueSlotSettle(ctx, updated.ID); qerr != nil {
				s.log.Error("Failed to enqueue slot settle, leaving it to the reconciler",
					zap.Error(qerr),
					zap.String("booking_id", booking.ID.String()),
				)
			}
		}
	}

	if updated.NeedsRefund() {
		s.refundAfterCancel(ctx, updated)
	}

	s.events.statusChanged(ctx, updated, booking.Status, actorName(actor), reason, patch.UpdatedAt)
	return updated, nil
}

// refundAfterCancel credits the wallet inline and falls back to the retry
// queue. The cancellation stands either way.
func (s *bookingService) refundAfterCancel(ctx context.Context, booking *entity.Booking) {
	err := s.retry.do(ctx, "refund", func() error { return s.refund(ctx, booking) })
	if err == nil {
		booking.PaymentStatus = entity.PaymentStatusRefunded
		return
	}

	s.metrics.Refunds.WithLabelValues("deferred").Inc()
	s.log.Error("Refund failed, deferring to retry queue",
		zap.Error(err),
		zap.String("booking_id", booking.ID.String()),
		zap.Float64("amount", booking.TotalPrice),
	)
	if qerr := s.queue.EnqueueRefund(ctx, booking.ID); qerr != nil {
		s.log.Error("Failed to enqueue refund, leaving it to the reconciler",
			zap.Error(qerr),
			zap.String("booking_id", booking.ID.String()),
		)
	}
}

func (s *bookingService) refund(ctx context.Context, booking *entity.Booking) error {
	if booking.TotalPrice > 0 {
		applied, err := s.repo.Wallet.Credit(ctx, &entity.WalletTransaction{
			BaseSimple:  entity.BaseSimple{ID: uuid.New(), CreatedAt: s.clock()},
			UserID:      booking.UserID,
			Type:        entity.WalletCredit,
			Amount:      booking.TotalPrice,
			Description: fmt.Sprintf("Refund for booking %s", booking.BookingNumber),
			ReferenceID: booking.ID,
		})
		if err != nil {
			s.metrics.Refunds.WithLabelValues("failed").Inc()
			return fmt.Errorf("credit wallet: %w", err)
		}
		if applied {
			s.metrics.Refunds.WithLabelValues("credited").Inc()
		} else {
			s.metrics.Refunds.WithLabelValues("duplicate").Inc()
		}
	}

	err := s.repo.Booking.SetPaymentStatus(ctx, booking.ID, entity.PaymentStatusPaid, entity.PaymentStatusRefunded)
	if err != nil && !errors.Is(err, repository.ErrStaleState) {
		return fmt.Errorf("mark refunded: %w", err)
	}

	s.log.Info("Wallet refunded",
		zap.String("booking_id", booking.ID.String()),
		zap.String("user_id", booking.UserID.String()),
		zap.Float64("amount", booking.TotalPrice),
	)
	return nil
}

func (s *bookingService) ProcessRefund(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	if !booking.NeedsRefund() {
		return nil
	}
	return s.refund(ctx, booking)
}

func (s *bookingService) SubmitReview(ctx context.Context, actor utils.Actor, bookingID string, req *request.SubmitReviewRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: only the patient can review a booking", ErrForbidden)
	}
	if booking.Status != entity.BookingStatusCompleted {
		return nil, fmt.Errorf("%w: only completed bookings can be reviewed, this one is %s", ErrIllegalTransition, booking.Status)
	}
	if booking.Rating != nil {
		return nil, fmt.Errorf("%w: booking has already been reviewed", ErrIllegalTransition)
	}

	updated, err := s.repo.Booking.AttachReview(ctx, booking.ID, req.Rating, req.Review, s.clock())
	if errors.Is(err, repository.ErrStaleState) {
		return nil, fmt.Errorf("%w: booking has already been reviewed", ErrIllegalTransition)
	}
	if err != nil {
		s.log.Error("Failed to attach review", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, fmt.Errorf("attach review: %w", err)
	}

	err = s.retry.do(ctx, "rating", func() error { return s.ApplyRating(ctx, updated.ID) })
	if err != nil {
		s.log.Error("Rating update failed, deferring to retry queue",
			zap.Error(err),
			zap.String("booking_id", bookingID),
			zap.String("provider_id", updated.ProviderID.String()),
		)
		if qerr := s.queue.EnqueueRatingApply(ctx, updated.ID); qerr != nil {
			s.log.Error("Failed to enqueue rating update, leaving it to the reconciler",
				zap.Error(qerr),
				zap.String("booking_id", bookingID),
			)
		}
	} else {
		updated.RatingApplied = true
	}

	s.activity.record(ctx, actor, "booking.review", "booking", booking.ID, fmt.Sprintf("rating %d", req.Rating))
	s.log.Info("Review submitted",
		zap.String("booking_id", bookingID),
		zap.String("provider_id", updated.ProviderID.String()),
		zap.Int("rating", req.Rating),
	)

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

// ApplyRating folds a booking's review into its provider's running average
// at most once.
func (s *bookingService) ApplyRating(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	if booking.Rating == nil || booking.RatingApplied {
		return nil
	}

	applied, err := s.repo.Provider.ApplyRating(ctx, booking.ProviderID, booking.ID, RunningAverage(*booking.Rating))
	if err != nil {
		s.metrics.RatingUpdates.WithLabelValues("failed").Inc()
		return fmt.Errorf("apply rating: %w", err)
	}
	if applied {
		s.metrics.RatingUpdates.WithLabelValues("applied").Inc()
	} else {
		s.metrics.RatingUpdates.WithLabelValues("duplicate").Inc()
	}
	return nil
}

// RescheduleBooking moves a live booking to another slot of the same
// provider. A replacement booking takes over the payment and the original is
// cancelled with reason "rescheduled".
func (s *bookingService) RescheduleBooking(ctx context.Context, actor utils.Actor, bookingID string, req *request.RescheduleBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	original, err := s.accessibleBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !canTransition(original.Status, entity.BookingStatusCancelled) {
		return nil, fmt.Errorf("%w: a %s booking cannot be rescheduled", ErrIllegalTransition, original.Status)
	}
	if scheduling.IsProjectedKey(req.NewSlotID) {
		return nil, fmt.Errorf("%w: slot %s is a projection, materialize it before booking", ErrValidation, req.NewSlotID)
	}

	slotID, err := parseID("slot", req.NewSlotID)
	if err != nil {
		return nil, err
	}
	if slotID == original.SlotID {
		return nil, fmt.Errorf("%w: booking already holds slot %s", ErrValidation, req.NewSlotID)
	}
	slot, err := s.repo.Slot.FindByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %s", ErrNotFound, req.NewSlotID)
	}
	if slot.ProviderID != original.ProviderID {
		return nil, fmt.Errorf("%w: a booking can only move to a slot of the same provider", ErrValidation)
	}
	if slot.Status != entity.SlotAvailable {
		s.metrics.SlotConflicts.Inc()
		return nil, fmt.Errorf("%w: slot %s is no longer available", ErrConflict, req.NewSlotID)
	}
	if s.started(slot) {
		return nil, fmt.Errorf("%w: slot %s has already started", ErrValidation, req.NewSlotID)
	}

	provider, err := s.findProvider(ctx, original.ProviderID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	replacement := *original
	replacement.BaseNoDelete = entity.NewBaseNoDelete(now)
	replacement.BookingNumber = utils.GenerateBookingNumber(now)
	replacement.SlotID = slot.ID
	replacement.ClinicID = slot.ClinicID
	replacement.HospitalID = slot.HospitalID
	replacement.Date = slot.Date
	replacement.StartTime = slot.StartTime
	replacement.EndTime = slot.EndTime
	replacement.VisitType = slot.VisitType
	replacement.RescheduledFrom = &original.ID
	replacement.RescheduledTo = nil
	replacement.CancelReason = nil
	replacement.CancelledBy = nil
	replacement.CancelledAt = nil
	replacement.CompletedAt = nil

	admit := func(ctx context.Context) error {
		if !slot.Date.Equal(original.Date) {
			if err := s.checkCapacity(ctx, provider, slot.Date); err != nil {
				return err
			}
		}
		if err := s.claim(ctx, slot.ID, replacement.ID); err != nil {
			return err
		}
		if err := s.insert(ctx, &replacement); err != nil {
			s.releaseClaim(ctx, slot.ID)
			return err
		}
		return nil
	}
	if err := s.guardCapacity(ctx, provider, slot.Date, admit); err != nil {
		return nil, err
	}

	reason := rescheduledReason
	by := cancelActor(actor)
	patch := entity.BookingPatch{
		Status:        entity.BookingStatusCancelled,
		CancelReason:  &reason,
		CancelledBy:   &by,
		CancelledAt:   &now,
		RescheduledTo: &replacement.ID,
		UpdatedAt:     now,
	}
	committed, err := s.commit(ctx, original, patch, actor, &reason)
	if err != nil && committed == nil {
		if derr := s.repo.Booking.Delete(ctx, replacement.ID); derr != nil {
			s.log.Error("Failed to remove replacement booking", zap.Error(derr), zap.String("booking_id", replacement.ID.String()))
		}
		s.releaseClaim(ctx, slot.ID)
		return nil, err
	}
	if err != nil {
		s.log.Warn("Original slot not released after reschedule", zap.Error(err), zap.String("booking_id", bookingID))
	}

	s.events.statusChanged(ctx, &replacement, "", actorName(actor), &reason, now)
	s.activity.record(ctx, actor, "booking.reschedule", "booking", original.ID,
		fmt.Sprintf("%s -> %s", original.BookingNumber, replacement.BookingNumber))
	s.log.Info("Booking rescheduled",
		zap.String("original_id", original.ID.String()),
		zap.String("replacement_id", replacement.ID.String()),
		zap.String("slot_id", slot.ID.String()),
	)

	resp := response.BookingToResponse(&replacement)
	return &resp, nil
}

// DeleteBooking removes a booking. A live booking is cancelled first so its
// slot and any wallet payment are returned.
func (s *bookingService) DeleteBooking(ctx context.Context, actor utils.Actor, bookingID string) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if canTransition(booking.Status, entity.BookingStatusCancelled) {
		reason := "deleted by admin"
		if booking, err = s.transition(ctx, booking, entity.BookingStatusCancelled, actor, &reason); err != nil {
			return err
		}
	}
	if booking.NeedsRefund() {
		return fmt.Errorf("%w: refund for booking %s is still pending", ErrConflict, bookingID)
	}

	if err := s.repo.Booking.Delete(ctx, booking.ID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
		}
		s.log.Error("Failed to delete booking", zap.Error(err), zap.String("booking_id", bookingID))
		return fmt.Errorf("delete booking: %w", err)
	}

	s.activity.record(ctx, actor, "booking.delete", "booking", booking.ID, booking.BookingNumber)
	s.log.Info("Booking deleted", zap.String("booking_id", bookingID))
	return nil
}

func cancelActor(actor utils.Actor) entity.CancelActor {
	switch {
	case actor.UserID == uuid.Nil:
		return entity.CancelBySystem
	case actor.IsAdmin():
		return entity.CancelByAdmin
	default:
		return entity.CancelByUser
	}
}

func actorName(actor utils.Actor) string {
	if actor.UserID == uuid.Nil {
		return "system"
	}
	return actor.Role
}

// SettleSlot finishes the slot move for a booking in a final status. A slot
// that is no longer booked to this booking is left alone.
func (s *bookingService) SettleSlot(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	to, ok := slotAfter(booking.Status)
	if !ok {
		return nil
	}

	slot, err := s.repo.Slot.FindByID(ctx, booking.SlotID)
	if err != nil {
		return fmt.Errorf("find slot: %w", err)
	}
	if slot == nil || slot.Status != entity.SlotBooked || slot.BookingID == nil || *slot.BookingID != booking.ID {
		return nil
	}

	_, err = s.repo.Slot.CompareAndSwapStatus(ctx, slot.ID, entity.SlotBooked, to, nil)
	if errors.Is(err, repository.ErrStaleState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle slot %s: %w", slot.ID, err)
	}

	s.log.Info("Slot settled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", slot.ID.String()),
		zap.String("to", string(to)),
	)
	return nil
}
