package entity

import (
	"github.com/google/uuid"
)

type ActivityLog struct {
	BaseSimple
	ActorID   *uuid.UUID `db:"actor_id"`
	Actor     string     `db:"actor"`
	Action    string     `db:"action"`
	Target    string     `db:"target"`
	TargetID  *string    `db:"target_id"`
	Details   string     `db:"details"`
	IPAddress *string    `db:"ip_address"`
	UserAgent *string    `db:"user_agent"`
}
