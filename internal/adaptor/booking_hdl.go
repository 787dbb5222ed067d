package adaptor

import (
	"io"
	"net/http"

	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings (protected)
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking created", booking)
}

// ListBookings handles GET /api/bookings (protected). Patients only see
// their own bookings.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := request.ListBookingsRequest{
		PaginatedRequest: paginationFromQuery(r),
		Status:           query.Get("status"),
		ProviderID:       query.Get("provider_id"),
		StartDate:        query.Get("start_date"),
		EndDate:          query.Get("end_date"),
	}
	if !validateRequest(w, &req) {
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetBooking handles GET /api/bookings/{id} (protected)
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// CancelBooking handles PUT /api/bookings/{id}/cancel (protected). The body
// is optional.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.CancelBookingRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", booking)
}

// RescheduleBooking handles POST /api/bookings/{id}/reschedule (protected)
func (h *BookingHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.RescheduleBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.RescheduleBooking(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "reschedule booking")
		return
	}

	utils.ResponseCreated(w, "Booking rescheduled", booking)
}

// SubmitReview handles POST /api/bookings/{id}/review (protected)
func (h *BookingHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.SubmitReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.SubmitReview(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "submit review")
		return
	}

	utils.ResponseSuccess(w, "Review submitted", booking)
}

// ==================== ADMIN METHODS ====================

// UpdateBookingStatus handles PUT /api/admin/bookings/{id}/status (admin only)
func (h *BookingHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.UpdateBookingStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.UpdateBookingStatus(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "update booking status")
		return
	}

	utils.ResponseSuccess(w, "Booking status updated", booking)
}

// DeleteBooking handles DELETE /api/admin/bookings/{id} (admin only)
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBooking(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.log, err, "delete booking")
		return
	}

	utils.ResponseSuccess(w, "Booking deleted", nil)
}

// decodeOptional is decodeAndValidate for endpoints whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	if len(body) == 0 {
		return true
	}
	return decodeBytes(w, body, dst)
}
