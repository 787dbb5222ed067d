package repository

import (
	"context"
	"fmt"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"go.uber.org/zap"
)

type ActivityRepository interface {
	Create(ctx context.Context, log *entity.ActivityLog) error
	FindAll(ctx context.Context, limit, offset int) ([]*entity.ActivityLog, error)
	CountAll(ctx context.Context) (int64, error)
}

type activityRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewActivityRepository(db database.PgxIface, log *zap.Logger) ActivityRepository {
	return &activityRepository{
		db:  db,
		log: log.With(zap.String("repository", "activity")),
	}
}

func (r *activityRepository) Create(ctx context.Context, a *entity.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (id, actor_id, actor, action, target, target_id,
		                           details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.ActorID,
		a.Actor,
		a.Action,
		a.Target,
		a.TargetID,
		a.Details,
		a.IPAddress,
		a.UserAgent,
		a.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to record activity",
			zap.Error(err),
			zap.String("action", a.Action),
			zap.String("target", a.Target),
		)
		return fmt.Errorf("record activity %s: %w", a.Action, err)
	}
	return nil
}

func (r *activityRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.ActivityLog, error) {
	query := `
		SELECT id, actor_id, actor, action, target, target_id, details,
		       ip_address, user_agent, created_at
		FROM activity_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list activity", zap.Error(err))
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var logs []*entity.ActivityLog
	for rows.Next() {
		var a entity.ActivityLog
		if err := rows.Scan(
			&a.ID,
			&a.ActorID,
			&a.Actor,
			&a.Action,
			&a.Target,
			&a.TargetID,
			&a.Details,
			&a.IPAddress,
			&a.UserAgent,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		logs = append(logs, &a)
	}
	return logs, rows.Err()
}

func (r *activityRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return total, nil
}
