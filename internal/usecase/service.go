package usecase

import (
	"time"

	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/scheduling"
	"clinic-booking/pkg/lock"
	"clinic-booking/pkg/messaging"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth     AuthService
	User     UserService
	Slot     SlotService
	Booking  BookingService
	Provider ProviderService
	Wallet   WalletService
	Activity ActivityService
}

// Dependencies are the collaborators shared by the services beyond the
// repositories. Clock defaults to time.Now.
type Dependencies struct {
	Locker  lock.Locker
	Broker  messaging.Broker
	Queue   RetryQueue
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

func NewService(repo *repository.Repository, config *utils.Config, deps Dependencies, log *zap.Logger) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	// utils.LoadConfig has already checked the fallback window.
	resolver := scheduling.NewResolver(repo.Clinic, scheduling.FallbackWindow{
		Open:        scheduling.MustTimeOfDay(config.Scheduling.FallbackOpenTime),
		Close:       scheduling.MustTimeOfDay(config.Scheduling.FallbackCloseTime),
		SlotMinutes: config.Scheduling.FallbackSlotMinutes,
	}, deps.Metrics, log)

	activity := &activityRecorder{
		repo:  repo.Activity,
		clock: deps.Clock,
		log:   log.With(zap.String("component", "activity")),
	}

	return &Service{
		Auth:     NewAuthService(repo, config, deps.Clock, log),
		User:     NewUserService(repo.User, repo.Session, deps.Clock, log),
		Slot:     NewSlotService(repo, resolver, config, deps, activity, log),
		Booking:  NewBookingService(repo, config, deps, activity, log),
		Provider: NewProviderService(repo, deps.Clock, activity, log),
		Wallet:   NewWalletService(repo, deps.Clock, activity, log),
		Activity: NewActivityService(repo.Activity, log),
	}
}
