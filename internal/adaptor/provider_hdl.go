package adaptor

import (
	"net/http"

	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProviderHandler serves providers and the clinics whose schedules they
// follow.
type ProviderHandler struct {
	service usecase.ProviderService
	log     *zap.Logger
}

func NewProviderHandler(service usecase.ProviderService, log *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		service: service,
		log:     log.With(zap.String("handler", "provider")),
	}
}

// ListProviders handles GET /api/providers
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := request.ListProvidersRequest{
		PaginatedRequest: paginationFromQuery(r),
		ClinicID:         query.Get("clinic_id"),
		HospitalID:       query.Get("hospital_id"),
		Specialty:        query.Get("specialty"),
	}
	if !validateRequest(w, &req) {
		return
	}

	providers, err := h.service.ListProviders(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "list providers")
		return
	}

	utils.ResponseSuccess(w, "success", providers)
}

// GetProvider handles GET /api/providers/{id}
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	provider, err := h.service.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get provider")
		return
	}

	utils.ResponseSuccess(w, "success", provider)
}

// ListClinics handles GET /api/clinics
func (h *ProviderHandler) ListClinics(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.service.ListClinics(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "list clinics")
		return
	}

	utils.ResponseSuccess(w, "success", clinics)
}

// GetClinic handles GET /api/clinics/{id}
func (h *ProviderHandler) GetClinic(w http.ResponseWriter, r *http.Request) {
	clinic, err := h.service.GetClinic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get clinic")
		return
	}

	utils.ResponseSuccess(w, "success", clinic)
}

// CreateProvider handles POST /api/admin/providers
func (h *ProviderHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.ProviderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	provider, err := h.service.CreateProvider(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create provider")
		return
	}

	utils.ResponseCreated(w, "Provider created", provider)
}

// UpdateProvider handles PUT /api/admin/providers/{id}
func (h *ProviderHandler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.ProviderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	provider, err := h.service.UpdateProvider(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "update provider")
		return
	}

	utils.ResponseSuccess(w, "Provider updated", provider)
}

// CreateClinic handles POST /api/admin/clinics
func (h *ProviderHandler) CreateClinic(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.ClinicRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	clinic, err := h.service.CreateClinic(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create clinic")
		return
	}

	utils.ResponseCreated(w, "Clinic created", clinic)
}

// UpdateClinic handles PUT /api/admin/clinics/{id}
func (h *ProviderHandler) UpdateClinic(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.ClinicRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	clinic, err := h.service.UpdateClinic(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "update clinic")
		return
	}

	utils.ResponseSuccess(w, "Clinic updated", clinic)
}
