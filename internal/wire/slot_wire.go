package wire

import (
	"clinic-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireSlot(r chi.Router, slotHandler *adaptor.SlotHandler, g guards) {
	// ==================== PUBLIC ROUTES ====================
	// Listing projects slots for dates that have none persisted
	r.Get("/api/slots", slotHandler.ListSlots)
	r.Get("/api/slots/{id}", slotHandler.GetSlot)

	// ==================== PROTECTED ROUTES ====================
	r.With(g.auth, g.rateLimit).Post("/api/slots/materialize", slotHandler.MaterializeSlot)

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/slots", func(r chi.Router) {
		r.Use(g.auth)
		r.Use(g.admin)

		r.Post("/", slotHandler.CreateSlots)
		r.Post("/generate", slotHandler.GenerateSlots)
		r.Post("/publish", slotHandler.PublishSlots)
		r.Put("/{id}/status", slotHandler.UpdateSlotStatus)
		r.Delete("/{id}", slotHandler.DeleteSlot)
	})
}
