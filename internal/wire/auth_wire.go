package wire

import (
	"clinic-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireAuth(r chi.Router, authHandler *adaptor.AuthHandler, g guards) {
	// ==================== PUBLIC ROUTES ====================
	r.With(g.rateLimit).Post("/api/register", authHandler.Register)
	r.With(g.rateLimit).Post("/api/login", authHandler.Login)

	// ==================== PROTECTED ROUTES ====================
	r.With(g.auth).Post("/api/logout", authHandler.Logout)
}
