package usecase

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ActivityService interface {
	GetActivityLogs(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ActivityLogResponse], error)
}

type activityService struct {
	repo repository.ActivityRepository
	log  *zap.Logger
}

func NewActivityService(repo repository.ActivityRepository, log *zap.Logger) ActivityService {
	return &activityService{
		repo: repo,
		log:  log.With(zap.String("service", "activity")),
	}
}

func (s *activityService) GetActivityLogs(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ActivityLogResponse], error) {
	logs, err := s.repo.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list activity logs", zap.Error(err))
		return nil, fmt.Errorf("list activity logs: %w", err)
	}

	total, err := s.repo.CountAll(ctx)
	if err != nil {
		s.log.Error("Failed to count activity logs", zap.Error(err))
		return nil, fmt.Errorf("count activity logs: %w", err)
	}

	data := make([]response.ActivityLogResponse, len(logs))
	for i, l := range logs {
		data[i] = response.ActivityToResponse(l)
	}

	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

// activityRecorder is the fire-and-forget audit sink used by the other
// services. A failed write is logged and otherwise ignored.
type activityRecorder struct {
	repo  repository.ActivityRepository
	clock func() time.Time
	log   *zap.Logger
}

func (r *activityRecorder) record(ctx context.Context, actor utils.Actor, action, target string, targetID uuid.UUID, details string) {
	entry := &entity.ActivityLog{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: r.clock()},
		Actor:      "system",
		Action:     action,
		Target:     target,
		Details:    details,
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		entry.ActorID = &id
		entry.Actor = actor.Role
	}
	if targetID != uuid.Nil {
		tid := targetID.String()
		entry.TargetID = &tid
	}
	if info, ok := utils.GetClientInfo(ctx); ok {
		entry.IPAddress = &info.IPAddress
		entry.UserAgent = &info.UserAgent
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		r.log.Warn("Failed to record activity",
			zap.Error(err),
			zap.String("action", action),
			zap.String("target", target),
		)
	}
}
