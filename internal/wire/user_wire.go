package wire

import (
	"clinic-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireUser(r chi.Router, userHandler *adaptor.UserHandler, g guards) {
	// ==================== PROTECTED ROUTES ====================
	r.Route("/api/user", func(r chi.Router) {
		r.Use(g.auth)

		r.Get("/profile", userHandler.GetProfile)
		r.Put("/profile", userHandler.UpdateProfile)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/users", func(r chi.Router) {
		r.Use(g.auth)
		r.Use(g.admin)

		r.Get("/", userHandler.GetAllUsers)
		r.Delete("/{id}", userHandler.DeleteUser)
	})
}
