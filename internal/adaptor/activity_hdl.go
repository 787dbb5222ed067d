package adaptor

import (
	"net/http"

	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type ActivityHandler struct {
	service usecase.ActivityService
	log     *zap.Logger
}

func NewActivityHandler(service usecase.ActivityService, log *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		log:     log.With(zap.String("handler", "activity")),
	}
}

// GetActivityLogs handles GET /api/admin/activity-logs (admin only)
func (h *ActivityHandler) GetActivityLogs(w http.ResponseWriter, r *http.Request) {
	req := paginationFromQuery(r)

	logs, err := h.service.GetActivityLogs(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "get activity logs")
		return
	}

	utils.ResponseSuccess(w, "success", logs)
}
