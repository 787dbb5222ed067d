package wire

import (
	"clinic-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireActivity(r chi.Router, activityHandler *adaptor.ActivityHandler, g guards) {
	r.With(g.auth, g.admin).Get("/api/admin/activity-logs", activityHandler.GetActivityLogs)
}
