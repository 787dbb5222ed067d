package wire_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository/memory"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/usecase"
	"clinic-booking/internal/wire"
	"clinic-booking/pkg/lock"
	"clinic-booking/pkg/messaging"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 1, 4, 8, 0, 0, 0, time.UTC)

type envelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type noopQueue struct{}

func (noopQueue) EnqueueRefund(context.Context, uuid.UUID) error      { return nil }
func (noopQueue) EnqueueRatingApply(context.Context, uuid.UUID) error { return nil }
func (noopQueue) EnqueueSlotSettle(context.Context, uuid.UUID) error  { return nil }

type server struct {
	t        *testing.T
	router   http.Handler
	provider *entity.Provider
}

func newServer(t *testing.T, checks map[string]wire.Check) *server {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	clinic := &entity.Clinic{
		BaseNoDelete: entity.NewBaseNoDelete(now),
		Name:         "Harbour Clinic",
		Address:      "12 Quay Street",
		WorkingHours: []entity.WorkingDay{
			{Day: "sunday", IsOpen: true, OpenTime: strPtr("09:00"), CloseTime: strPtr("12:00")},
		},
		DefaultOpenTime:     "08:00",
		DefaultCloseTime:    "17:00",
		SlotDurationMinutes: 30,
		ClosedDates:         []string{},
		IsActive:            true,
	}
	require.NoError(t, repo.Clinic.Create(ctx, clinic))

	provider := &entity.Provider{
		BaseNoDelete:    entity.NewBaseNoDelete(now),
		Name:            "Dr. Amara Okafor",
		Specialty:       "General Practice",
		ClinicID:        &clinic.ID,
		ConsultationFee: 200,
		ReceptionMode:   entity.ReceptionOpen,
		IsActive:        true,
	}
	require.NoError(t, repo.Provider.Create(ctx, provider))

	hash, err := utils.HashPassword("admin-pass")
	require.NoError(t, err)
	require.NoError(t, repo.User.Create(ctx, &entity.User{
		Base:         entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:         "Clinic Admin",
		Email:        "admin@example.com",
		PasswordHash: hash,
		Role:         entity.RoleAdmin,
		IsActive:     true,
	}))

	config := &utils.Config{
		App:     utils.AppConfig{Timezone: "UTC", AutoConfirmCash: true},
		Session: utils.SessionConfig{ExpiryHours: 24},
		Scheduling: utils.SchedulingConfig{
			FallbackOpenTime:     "09:00",
			FallbackCloseTime:    "21:00",
			FallbackSlotMinutes:  30,
			ProjectionHorizonDay: 60,
		},
		Retry:     utils.RetryConfig{InlineAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		RateLimit: utils.RateLimitConfig{RPS: 1000, Burst: 1000},
	}

	registry := prometheus.NewRegistry()
	app := wire.Wiring(repo, config, wire.Options{
		Deps: usecase.Dependencies{
			Locker:  lock.NewMemoryLocker(time.Second),
			Broker:  messaging.NewMemoryBroker(),
			Queue:   noopQueue{},
			Metrics: metrics.New(registry),
			Clock:   func() time.Time { return now },
		},
		Gatherer: registry,
		Checks:   checks,
	}, zap.NewNop())

	return &server{t: t, router: app.Router, provider: provider}
}

func strPtr(s string) *string { return &s }

func (s *server) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var auth response.AuthResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &auth))
	return auth.Token
}

func (s *server) register(email string) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/register", "", map[string]string{
		"name": "Lena Park", "email": email, "password": "s3cret-pass",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var auth response.AuthResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &auth))
	return auth.Token
}

func TestHealthAndReadiness(t *testing.T) {
	s := newServer(t, map[string]wire.Check{
		"database": func(context.Context) error { return nil },
	})

	rec, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec, env := s.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Status)

	down := newServer(t, map[string]wire.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec, env = down.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", env.Errors["redis"])
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	s := newServer(t, nil)
	token := s.register("lena@example.com")

	rec, _ := s.do(http.MethodGet, "/api/user/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Token "+token)
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusUnauthorized, raw.Code)

	rec, _ = s.do(http.MethodGet, "/api/user/profile", uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := s.do(http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile response.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "lena@example.com", profile.Email)

	// Patients are kept out of the admin surface.
	rec, _ = s.do(http.MethodGet, "/api/admin/activity-logs", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/user/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newServer(t, nil)
	patient := s.register("lena@example.com")
	admin := s.login("admin@example.com", "admin-pass")

	// 1. Public listing projects the Sunday grid
	rec, env := s.do(http.MethodGet, "/api/slots?provider_id="+s.provider.ID.String()+"&date=2025-01-05", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slots []response.SlotResponse
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	require.Len(t, slots, 6)

	// 2. A projected key cannot be booked directly
	rec, _ = s.do(http.MethodPost, "/api/bookings", patient, map[string]string{
		"slot_id": slots[0].ID, "payment_method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 3. Materialize, then book
	rec, env = s.do(http.MethodPost, "/api/slots/materialize", patient, map[string]string{"slot_key": slots[0].ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var slot response.SlotResponse
	require.NoError(t, json.Unmarshal(env.Data, &slot))

	rec, env = s.do(http.MethodPost, "/api/bookings", patient, map[string]string{
		"slot_id": slot.ID, "payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking response.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, entity.BookingStatusConfirmed, booking.Status)

	// 4. The slot is taken now
	rec, _ = s.do(http.MethodPost, "/api/bookings", patient, map[string]string{
		"slot_id": slot.ID, "payment_method": "cash",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 5. Only admins complete bookings
	path := "/api/admin/bookings/" + booking.ID + "/status"
	rec, _ = s.do(http.MethodPut, path, patient, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPut, path, admin, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 6. A completed booking can not be cancelled
	rec, _ = s.do(http.MethodPut, "/api/bookings/"+booking.ID+"/cancel", patient, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// 7. One review per booking
	reviewPath := "/api/bookings/" + booking.ID + "/review"
	rec, _ = s.do(http.MethodPost, reviewPath, patient, map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = s.do(http.MethodPost, reviewPath, patient, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/providers/"+s.provider.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var provider response.ProviderResponse
	require.NoError(t, json.Unmarshal(env.Data, &provider))
	assert.Equal(t, 1, provider.ReviewCount)
	assert.InDelta(t, 4.0, provider.Rating, 1e-9)

	// 8. Listing is scoped to the caller
	rec, env = s.do(http.MethodGet, "/api/bookings?page=1&per_page=5", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page response.PaginatedResponse[response.BookingResponse]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Data, 1)
}

func TestValidationErrorsAreReportedPerField(t *testing.T) {
	s := newServer(t, nil)
	patient := s.register("lena@example.com")

	rec, env := s.do(http.MethodPost, "/api/bookings", patient, map[string]string{"payment_method": "card"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "SlotID")
	assert.Contains(t, env.Errors, "PaymentMethod")

	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader("{not json"))
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	rec, _ = s.do(http.MethodGet, "/api/slots?date=05-01-2025", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	s := newServer(t, nil)

	s.do(http.MethodGet, "/api/providers", "", nil)

	rec, _ := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_booking_http_requests_total{method="GET",route="/api/providers",status="200"} 1`)
}
