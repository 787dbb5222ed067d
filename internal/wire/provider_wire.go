package wire

import (
	"clinic-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireProvider(r chi.Router, providerHandler *adaptor.ProviderHandler, g guards) {
	// ==================== PUBLIC ROUTES ====================
	r.Get("/api/providers", providerHandler.ListProviders)
	r.Get("/api/providers/{id}", providerHandler.GetProvider)
	r.Get("/api/clinics", providerHandler.ListClinics)
	r.Get("/api/clinics/{id}", providerHandler.GetClinic)

	// ==================== ADMIN ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(g.auth)
		r.Use(g.admin)

		r.Post("/api/admin/providers", providerHandler.CreateProvider)
		r.Put("/api/admin/providers/{id}", providerHandler.UpdateProvider)
		r.Post("/api/admin/clinics", providerHandler.CreateClinic)
		r.Put("/api/admin/clinics/{id}", providerHandler.UpdateClinic)
	})
}
