package adaptor

import (
	"net/http"

	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SlotHandler struct {
	service usecase.SlotService
	log     *zap.Logger
}

func NewSlotHandler(service usecase.SlotService, log *zap.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log.With(zap.String("handler", "slot")),
	}
}

// ListSlots handles GET /api/slots (public). Dates without persisted slots
// are answered with projected ones.
func (h *SlotHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := request.ListSlotsRequest{
		ProviderID: query.Get("provider_id"),
		ClinicID:   query.Get("clinic_id"),
		HospitalID: query.Get("hospital_id"),
		Type:       query.Get("type"),
		Status:     query.Get("status"),
		Date:       query.Get("date"),
		StartDate:  query.Get("start_date"),
		EndDate:    query.Get("end_date"),
	}
	if !validateRequest(w, &req) {
		return
	}

	slots, err := h.service.ListSlots(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "list slots")
		return
	}

	utils.ResponseSuccess(w, "success", slots)
}

// GetSlot handles GET /api/slots/{id} (public). Accepts a slot ID or a
// projected key.
func (h *SlotHandler) GetSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.service.GetSlot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get slot")
		return
	}

	utils.ResponseSuccess(w, "success", slot)
}

// MaterializeSlot handles POST /api/slots/materialize (protected)
func (h *SlotHandler) MaterializeSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.MaterializeSlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	slot, err := h.service.MaterializeSlot(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "materialize slot")
		return
	}

	utils.ResponseCreated(w, "Slot materialized", slot)
}

// ==================== ADMIN METHODS ====================

// CreateSlots handles POST /api/admin/slots (admin only)
func (h *SlotHandler) CreateSlots(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.CreateSlotsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.CreateSlots(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create slots")
		return
	}

	utils.ResponseCreated(w, "Slots created", result)
}

// GenerateSlots handles POST /api/admin/slots/generate (admin only)
func (h *SlotHandler) GenerateSlots(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.GenerateSlotsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.GenerateSlots(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "generate slots")
		return
	}

	utils.ResponseCreated(w, "Slots generated", result)
}

// PublishSlots handles POST /api/admin/slots/publish (admin only)
func (h *SlotHandler) PublishSlots(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.PublishSlotsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.PublishSlots(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "publish slots")
		return
	}

	utils.ResponseCreated(w, "Slots published", result)
}

// UpdateSlotStatus handles PUT /api/admin/slots/{id}/status (admin only)
func (h *SlotHandler) UpdateSlotStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.UpdateSlotStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	slot, err := h.service.UpdateSlotStatus(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "update slot status")
		return
	}

	utils.ResponseSuccess(w, "Slot status updated", slot)
}

// DeleteSlot handles DELETE /api/admin/slots/{id} (admin only)
func (h *SlotHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSlot(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.log, err, "delete slot")
		return
	}

	utils.ResponseSuccess(w, "Slot deleted", nil)
}
