package wire

import (
	"clinic-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, g guards) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(g.auth)

		r.Get("/", bookingHandler.ListBookings)
		r.Get("/{id}", bookingHandler.GetBooking)

		// Mutations are rate limited per user
		r.Group(func(r chi.Router) {
			r.Use(g.rateLimit)

			r.Post("/", bookingHandler.CreateBooking)
			r.Put("/{id}/cancel", bookingHandler.CancelBooking)
			r.Post("/{id}/reschedule", bookingHandler.RescheduleBooking)
			r.Post("/{id}/review", bookingHandler.SubmitReview)
		})
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(g.auth)
		r.Use(g.admin)

		r.Put("/{id}/status", bookingHandler.UpdateBookingStatus)
		r.Delete("/{id}", bookingHandler.DeleteBooking)
	})
}
