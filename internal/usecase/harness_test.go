package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/data/repository/memory"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/lock"
	"clinic-booking/pkg/messaging"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2025-01-05 is a Sunday. The clock sits on the Saturday morning before it.
var (
	sunday = time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	friday = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	now    = time.Date(2025, 1, 4, 8, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

type fakeQueue struct {
	mu      sync.Mutex
	refunds []uuid.UUID
	ratings []uuid.UUID
	settles []uuid.UUID
}

func (q *fakeQueue) EnqueueRefund(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refunds = append(q.refunds, id)
	return nil
}

func (q *fakeQueue) EnqueueRatingApply(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ratings = append(q.ratings, id)
	return nil
}

func (q *fakeQueue) EnqueueSlotSettle(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.settles = append(q.settles, id)
	return nil
}

// flakyWallet fails credits while failCredit is set.
type flakyWallet struct {
	repository.WalletRepository
	failCredit atomic.Bool
}

func (w *flakyWallet) Credit(ctx context.Context, tx *entity.WalletTransaction) (bool, error) {
	if w.failCredit.Load() {
		return false, errors.New("ledger unavailable")
	}
	return w.WalletRepository.Credit(ctx, tx)
}

// flakyProviders fails rating updates while failRating is set.
type flakyProviders struct {
	repository.ProviderRepository
	failRating atomic.Bool
}

func (p *flakyProviders) ApplyRating(ctx context.Context, providerID, bookingID uuid.UUID, fn repository.RatingFunc) (bool, error) {
	if p.failRating.Load() {
		return false, errors.New("provider row locked")
	}
	return p.ProviderRepository.ApplyRating(ctx, providerID, bookingID, fn)
}

// flakySlots fails moving a booked slot on while failSettle is set. Claims
// still go through.
type flakySlots struct {
	repository.SlotStore
	failSettle atomic.Bool
}

func (s *flakySlots) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to entity.SlotStatus, bookingID *uuid.UUID) (*entity.AvailabilitySlot, error) {
	if from == entity.SlotBooked && s.failSettle.Load() {
		return nil, errors.New("slot table unavailable")
	}
	return s.SlotStore.CompareAndSwapStatus(ctx, id, from, to, bookingID)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	repo      *repository.Repository
	svc       *usecase.Service
	broker    *messaging.MemoryBroker
	queue     *fakeQueue
	wallet    *flakyWallet
	providers *flakyProviders
	slotStore *flakySlots
	clinic    *entity.Clinic
	provider  *entity.Provider
	admin     utils.Actor
	users     int
}

func testConfig() *utils.Config {
	return &utils.Config{
		App: utils.AppConfig{
			Timezone:        "UTC",
			AutoConfirmCash: true,
		},
		Session: utils.SessionConfig{ExpiryHours: 24},
		Scheduling: utils.SchedulingConfig{
			FallbackOpenTime:     "09:00",
			FallbackCloseTime:    "21:00",
			FallbackSlotMinutes:  30,
			ProjectionHorizonDay: 60,
		},
		Retry: utils.RetryConfig{
			InlineAttempts:  1,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			BatchSize:       10,
			QueueMaxRetry:   3,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testConfig())
}

func newHarnessWith(t *testing.T, cfg *utils.Config) *harness {
	t.Helper()
	ctx := context.Background()

	repo := memory.New()
	wallet := &flakyWallet{WalletRepository: repo.Wallet}
	providers := &flakyProviders{ProviderRepository: repo.Provider}
	slotStore := &flakySlots{SlotStore: repo.Slot}
	repo.Wallet = wallet
	repo.Provider = providers
	repo.Slot = slotStore

	h := &harness{
		t:         t,
		ctx:       ctx,
		repo:      repo,
		broker:    messaging.NewMemoryBroker(),
		queue:     &fakeQueue{},
		wallet:    wallet,
		providers: providers,
		slotStore: slotStore,
	}
	h.svc = usecase.NewService(repo, cfg, usecase.Dependencies{
		Locker:  lock.NewMemoryLocker(time.Second),
		Broker:  h.broker,
		Queue:   h.queue,
		Metrics: metrics.New(prometheus.NewRegistry()),
		Clock:   func() time.Time { return now },
	}, zap.NewNop())

	h.clinic = &entity.Clinic{
		BaseNoDelete: entity.NewBaseNoDelete(now),
		Name:         "Harbour Clinic",
		Address:      "12 Quay Street",
		WorkingHours: []entity.WorkingDay{
			{Day: "sunday", IsOpen: true, OpenTime: strPtr("09:00"), CloseTime: strPtr("12:00")},
			{Day: "monday", IsOpen: true},
			{Day: "friday", IsOpen: false},
		},
		DefaultOpenTime:     "08:00",
		DefaultCloseTime:    "17:00",
		SlotDurationMinutes: 30,
		ClosedDates:         []string{},
		IsActive:            true,
	}
	require.NoError(t, repo.Clinic.Create(ctx, h.clinic))

	h.provider = h.newProvider(entity.ReceptionOpen, 0)
	h.admin = h.user(entity.RoleAdmin, 0)
	return h
}

func (h *harness) newProvider(mode entity.ReceptionMode, capacity int) *entity.Provider {
	h.t.Helper()
	p := &entity.Provider{
		BaseNoDelete:      entity.NewBaseNoDelete(now),
		Name:              "Dr. Amara Okafor",
		Specialty:         "General Practice",
		ClinicID:          &h.clinic.ID,
		ConsultationFee:   200,
		OnlineFee:         floatPtr(150),
		ReceptionMode:     mode,
		ReceptionCapacity: capacity,
		IsActive:          true,
	}
	require.NoError(h.t, h.repo.Provider.Create(h.ctx, p))
	return p
}

func (h *harness) user(role entity.UserRole, balance float64) utils.Actor {
	h.t.Helper()
	h.users++
	u := &entity.User{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:     fmt.Sprintf("Patient %d", h.users),
		Email:    fmt.Sprintf("patient%d@example.com", h.users),
		Phone:    strPtr("+15550100"),
		Role:     role,
		IsActive: true,
	}
	require.NoError(h.t, h.repo.User.Create(h.ctx, u))
	if balance > 0 {
		_, err := h.repo.Wallet.Credit(h.ctx, &entity.WalletTransaction{
			BaseSimple:  entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
			UserID:      u.ID,
			Type:        entity.WalletCredit,
			Amount:      balance,
			Description: "opening balance",
			ReferenceID: uuid.New(),
		})
		require.NoError(h.t, err)
	}
	return utils.Actor{UserID: u.ID, Role: string(role)}
}

func (h *harness) patient(balance float64) utils.Actor {
	return h.user(entity.RolePatient, balance)
}

// publishSunday persists the provider's Sunday grid and returns slot IDs by
// start time.
func (h *harness) publishSunday(provider *entity.Provider) map[string]string {
	h.t.Helper()
	_, err := h.svc.Slot.PublishSlots(h.ctx, h.admin, &request.PublishSlotsRequest{
		ProviderID: provider.ID.String(),
		Date:       sunday.Format("2006-01-02"),
	})
	require.NoError(h.t, err)

	slots, err := h.svc.Slot.ListSlots(h.ctx, &request.ListSlotsRequest{
		ProviderID: provider.ID.String(),
		Date:       sunday.Format("2006-01-02"),
	})
	require.NoError(h.t, err)

	ids := make(map[string]string, len(slots))
	for _, s := range slots {
		ids[s.StartTime] = s.ID
	}
	return ids
}

func (h *harness) book(actor utils.Actor, slotID, method string) (*response.BookingResponse, error) {
	return h.svc.Booking.CreateBooking(h.ctx, actor, &request.CreateBookingRequest{
		SlotID:        slotID,
		PaymentMethod: method,
	})
}

func (h *harness) mustBook(actor utils.Actor, slotID, method string) *response.BookingResponse {
	h.t.Helper()
	b, err := h.book(actor, slotID, method)
	require.NoError(h.t, err)
	return b
}

func (h *harness) slot(id string) *entity.AvailabilitySlot {
	h.t.Helper()
	s, err := h.repo.Slot.FindByID(h.ctx, uuid.MustParse(id))
	require.NoError(h.t, err)
	require.NotNil(h.t, s)
	return s
}

func (h *harness) booking(id string) *entity.Booking {
	h.t.Helper()
	b, err := h.repo.Booking.FindByID(h.ctx, uuid.MustParse(id))
	require.NoError(h.t, err)
	require.NotNil(h.t, b)
	return b
}

func (h *harness) balance(actor utils.Actor) float64 {
	h.t.Helper()
	b, err := h.repo.Wallet.Balance(h.ctx, actor.UserID)
	require.NoError(h.t, err)
	return b
}

func (h *harness) reloadProvider(id uuid.UUID) *entity.Provider {
	h.t.Helper()
	p, err := h.repo.Provider.FindByID(h.ctx, id)
	require.NoError(h.t, err)
	return p
}

// complete moves a booking to completed as the admin.
func (h *harness) complete(bookingID string) {
	h.t.Helper()
	_, err := h.svc.Booking.UpdateBookingStatus(h.ctx, h.admin, bookingID, &request.UpdateBookingStatusRequest{
		Status: string(entity.BookingStatusCompleted),
	})
	require.NoError(h.t, err)
}
