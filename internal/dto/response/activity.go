package response

import (
	"time"

	"clinic-booking/internal/data/entity"
)

type ActivityLogResponse struct {
	ID        string    `json:"id"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	TargetID  *string   `json:"target_id,omitempty"`
	Details   string    `json:"details"`
	IPAddress *string   `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func ActivityToResponse(a *entity.ActivityLog) ActivityLogResponse {
	return ActivityLogResponse{
		ID:        a.ID.String(),
		ActorID:   uuidString(a.ActorID),
		Actor:     a.Actor,
		Action:    a.Action,
		Target:    a.Target,
		TargetID:  a.TargetID,
		Details:   a.Details,
		IPAddress: a.IPAddress,
		CreatedAt: a.CreatedAt,
	}
}
