package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/scheduling"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const slotBatchSize = 500

type SlotService interface {
	// Public
	ListSlots(ctx context.Context, req *request.ListSlotsRequest) ([]response.SlotResponse, error)
	GetSlot(ctx context.Context, ref string) (*response.SlotResponse, error)
	MaterializeSlot(ctx context.Context, actor utils.Actor, req *request.MaterializeSlotRequest) (*response.SlotResponse, error)

	// Admin
	CreateSlots(ctx context.Context, actor utils.Actor, req *request.CreateSlotsRequest) (*response.GenerateSlotsResponse, error)
	GenerateSlots(ctx context.Context, actor utils.Actor, req *request.GenerateSlotsRequest) (*response.GenerateSlotsResponse, error)
	PublishSlots(ctx context.Context, actor utils.Actor, req *request.PublishSlotsRequest) (*response.GenerateSlotsResponse, error)
	UpdateSlotStatus(ctx context.Context, actor utils.Actor, slotID string, req *request.UpdateSlotStatusRequest) (*response.SlotResponse, error)
	DeleteSlot(ctx context.Context, actor utils.Actor, slotID string) error
}

type slotService struct {
	repo     *repository.Repository
	resolver *scheduling.Resolver
	config   *utils.Config
	metrics  *metrics.Metrics
	clock    func() time.Time
	activity *activityRecorder
	log      *zap.Logger
}

func NewSlotService(
	repo *repository.Repository,
	resolver *scheduling.Resolver,
	config *utils.Config,
	deps Dependencies,
	activity *activityRecorder,
	log *zap.Logger,
) SlotService {
	return &slotService{
		repo:     repo,
		resolver: resolver,
		config:   config,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		activity: activity,
		log:      log.With(zap.String("service", "slot")),
	}
}

// today returns the current calendar date and wall-clock time in the
// configured timezone.
func (s *slotService) today() (time.Time, scheduling.TimeOfDay) {
	now := s.clock().In(s.config.Location())
	return utils.DateOnly(now), scheduling.At(now)
}

func (s *slotService) horizon(today time.Time) time.Time {
	return today.AddDate(0, 0, s.config.Scheduling.ProjectionHorizonDay)
}

func (s *slotService) ListSlots(ctx context.Context, req *request.ListSlotsRequest) ([]response.SlotResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("List slots validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	var filter repository.SlotFilter
	var err error
	if filter.ProviderID, err = parseOptionalID("provider", req.ProviderID); err != nil {
		return nil, err
	}
	if filter.ClinicID, err = parseOptionalID("clinic", req.ClinicID); err != nil {
		return nil, err
	}
	if filter.HospitalID, err = parseOptionalID("hospital", req.HospitalID); err != nil {
		return nil, err
	}

	status := entity.SlotAvailable
	if req.Status != "" {
		status = entity.SlotStatus(req.Status)
	}
	filter.Status = &status
	if req.Type != "" {
		visitType := entity.VisitType(req.Type)
		filter.VisitType = &visitType
	}

	today, now := s.today()
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	switch {
	case date != nil:
		filter.DateFrom, filter.DateTo = date, date
	case req.StartDate != "" || req.EndDate != "":
		if filter.DateFrom, err = parseOptionalDate("start_date", req.StartDate); err != nil {
			return nil, err
		}
		if filter.DateTo, err = parseOptionalDate("end_date", req.EndDate); err != nil {
			return nil, err
		}
		if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
			return nil, fmt.Errorf("%w: end_date is before start_date", ErrValidation)
		}
	default:
		filter.DateFrom = &today
	}

	rows, err := s.repo.Slot.List(ctx, filter)
	if err != nil {
		s.log.Error("Failed to list slots", zap.Error(err))
		return nil, fmt.Errorf("list slots: %w", err)
	}

	slots := make([]scheduling.Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, scheduling.FromEntity(row))
	}

	if len(slots) == 0 && date != nil && filter.ProviderID != nil && status == entity.SlotAvailable {
		slots, err = s.project(ctx, *filter.ProviderID, filter, *date, today, now)
		if err != nil {
			return nil, err
		}
	}

	return response.SlotsToResponse(slots), nil
}

// project returns the display-only grid for a provider date that has no
// persisted slots at all. Any persisted row, blocked ones included, means
// availability was configured explicitly and suppresses the projection.
func (s *slotService) project(ctx context.Context, providerID uuid.UUID, filter repository.SlotFilter, date, today time.Time, now scheduling.TimeOfDay) ([]scheduling.Slot, error) {
	if date.Before(today) || date.After(s.horizon(today)) {
		return nil, nil
	}

	persisted, err := s.persistedOn(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if persisted {
		return nil, nil
	}

	provider, err := s.findProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !sameRef(filter.ClinicID, provider.ClinicID) || !sameRef(filter.HospitalID, provider.HospitalID) {
		return nil, nil
	}

	hours, err := s.resolve(ctx, provider, date)
	if err != nil {
		return nil, err
	}

	visitType := entity.VisitClinic
	if filter.VisitType != nil {
		visitType = *filter.VisitType
	}

	candidates := scheduling.Generate(hours, visitType, provider.Fees(), nil)
	if date.Equal(today) {
		candidates = upcoming(candidates, now)
	}

	slots := scheduling.Project(provider.ID, hours, date, candidates)
	for i := range slots {
		slots[i].HospitalID = provider.HospitalID
	}
	s.metrics.SlotsProjected.Add(float64(len(slots)))

	s.log.Debug("Projected slots",
		zap.String("provider_id", providerID.String()),
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("count", len(slots)),
		zap.Bool("fallback", hours.Fallback),
	)
	return slots, nil
}

// persistedOn reports whether the provider has any stored slot on date.
func (s *slotService) persistedOn(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error) {
	n, err := s.repo.Slot.Count(ctx, repository.SlotFilter{
		ProviderID: &providerID,
		DateFrom:   &date,
		DateTo:     &date,
	})
	if err != nil {
		return false, fmt.Errorf("count persisted slots: %w", err)
	}
	return n > 0, nil
}

// sameRef reports whether an optional filter value admits ref. A nil filter
// admits anything.
func sameRef(filter, ref *uuid.UUID) bool {
	if filter == nil {
		return true
	}
	return ref != nil && *ref == *filter
}

func upcoming(candidates []scheduling.Candidate, now scheduling.TimeOfDay) []scheduling.Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Start > now {
			out = append(out, c)
		}
	}
	return out
}

func (s *slotService) findProvider(ctx context.Context, id uuid.UUID) (*entity.Provider, error) {
	provider, err := s.repo.Provider.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to find provider", zap.Error(err), zap.String("provider_id", id.String()))
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if provider == nil || !provider.IsActive {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}
	return provider, nil
}

func (s *slotService) resolve(ctx context.Context, provider *entity.Provider, date time.Time) (scheduling.Hours, error) {
	hours, err := s.resolver.Resolve(ctx, provider.ClinicID, date)
	if err != nil {
		if errors.Is(err, scheduling.ErrUnknownClinic) {
			return scheduling.Hours{}, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return scheduling.Hours{}, fmt.Errorf("resolve working hours: %w", err)
	}
	return hours, nil
}

type projectedSlot struct {
	key       scheduling.ProjectedKey
	provider  *entity.Provider
	hours     scheduling.Hours
	candidate scheduling.Candidate
}

// resolveProjected checks a projected key against the provider's current
// hours grid. Keys that the grid no longer produces are rejected.
func (s *slotService) resolveProjected(ctx context.Context, ref string) (*projectedSlot, error) {
	key, err := scheduling.ParseProjectedKey(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	provider, err := s.findProvider(ctx, key.ProviderID)
	if err != nil {
		return nil, err
	}

	today, now := s.today()
	if key.Date.Before(today) {
		return nil, fmt.Errorf("%w: %s is in the past", ErrValidation, key.Date.Format("2006-01-02"))
	}
	if key.Date.After(s.horizon(today)) {
		return nil, fmt.Errorf("%w: %s is beyond the booking horizon", ErrValidation, key.Date.Format("2006-01-02"))
	}

	hours, err := s.resolve(ctx, provider, key.Date)
	if err != nil {
		return nil, err
	}
	if hours.Closed {
		return nil, fmt.Errorf("%w: provider is closed on %s", ErrValidation, key.Date.Format("2006-01-02"))
	}

	for _, c := range scheduling.Generate(hours, key.VisitType, provider.Fees(), nil) {
		if c.Start != key.Start {
			continue
		}
		if key.Date.Equal(today) && c.Start <= now {
			return nil, fmt.Errorf("%w: slot %s has already started", ErrValidation, c.Start)
		}
		return &projectedSlot{key: key, provider: provider, hours: hours, candidate: c}, nil
	}
	return nil, fmt.Errorf("%w: %s is not on the provider's schedule", ErrValidation, key.Start)
}

func (s *slotService) GetSlot(ctx context.Context, ref string) (*response.SlotResponse, error) {
	if scheduling.IsProjectedKey(ref) {
		p, err := s.resolveProjected(ctx, ref)
		if err != nil {
			return nil, err
		}
		existing, err := s.existingAt(ctx, p.provider.ID, p.key.Date, p.key.Start.String())
		if err != nil {
			return nil, err
		}
		if existing != nil {
			resp := response.SlotToResponse(scheduling.FromEntity(existing))
			return &resp, nil
		}
		persisted, err := s.persistedOn(ctx, p.provider.ID, p.key.Date)
		if err != nil {
			return nil, err
		}
		if persisted {
			return nil, fmt.Errorf("%w: slot %s is not offered", ErrNotFound, ref)
		}
		slot := scheduling.Project(p.provider.ID, p.hours, p.key.Date, []scheduling.Candidate{p.candidate})[0]
		slot.HospitalID = p.provider.HospitalID
		resp := response.SlotToResponse(slot)
		return &resp, nil
	}

	id, err := parseID("slot", ref)
	if err != nil {
		return nil, err
	}
	slot, err := s.repo.Slot.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to find slot", zap.Error(err), zap.String("slot_id", ref))
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %s", ErrNotFound, ref)
	}

	resp := response.SlotToResponse(scheduling.FromEntity(slot))
	return &resp, nil
}

// MaterializeSlot persists a projected slot as an available row. Repeating
// the call for the same key returns the same row.
func (s *slotService) MaterializeSlot(ctx context.Context, actor utils.Actor, req *request.MaterializeSlotRequest) (*response.SlotResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	if !scheduling.IsProjectedKey(req.SlotKey) {
		return s.GetSlot(ctx, req.SlotKey)
	}

	p, err := s.resolveProjected(ctx, req.SlotKey)
	if err != nil {
		return nil, err
	}
	start := p.key.Start.String()

	existing, err := s.existingAt(ctx, p.provider.ID, p.key.Date, start)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		resp := response.SlotToResponse(scheduling.FromEntity(existing))
		return &resp, nil
	}

	// Stored availability for the day replaces the projected grid, and its
	// rows need not line up with it.
	persisted, err := s.persistedOn(ctx, p.provider.ID, p.key.Date)
	if err != nil {
		return nil, err
	}
	if persisted {
		return nil, fmt.Errorf("%w: availability on %s is already published", ErrConflict, p.key.Date.Format("2006-01-02"))
	}

	row := p.candidate.ToEntity(p.provider.ID, p.hours.ClinicID, p.provider.HospitalID, p.key.Date, s.clock())
	if err := s.repo.Slot.Create(ctx, row); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			s.log.Error("Failed to materialize slot", zap.Error(err), zap.String("key", req.SlotKey))
			return nil, fmt.Errorf("materialize slot: %w", err)
		}
		// Lost a race with another materialization of the same key.
		existing, err = s.existingAt(ctx, p.provider.ID, p.key.Date, start)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: slot %s is taken", ErrConflict, req.SlotKey)
		}
		row = existing
	} else {
		s.log.Info("Slot materialized",
			zap.String("slot_id", row.ID.String()),
			zap.String("key", req.SlotKey),
			zap.Bool("fallback", p.hours.Fallback),
		)
		s.activity.record(ctx, actor, "slot.materialize", "slot", row.ID, req.SlotKey)
	}

	resp := response.SlotToResponse(scheduling.FromEntity(row))
	return &resp, nil
}

// existingAt returns the non-blocked row at (provider, date, start). A
// blocked row at that time is reported as a conflict.
func (s *slotService) existingAt(ctx context.Context, providerID uuid.UUID, date time.Time, start string) (*entity.AvailabilitySlot, error) {
	existing, err := s.repo.Slot.FindByKey(ctx, providerID, date, start)
	if err != nil {
		return nil, fmt.Errorf("find slot by key: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	blocked := entity.SlotBlocked
	rows, err := s.repo.Slot.List(ctx, repository.SlotFilter{
		ProviderID: &providerID,
		DateFrom:   &date,
		DateTo:     &date,
		Status:     &blocked,
	})
	if err != nil {
		return nil, fmt.Errorf("list blocked slots: %w", err)
	}
	for _, row := range rows {
		if row.StartTime == start {
			return nil, fmt.Errorf("%w: slot at %s is blocked", ErrConflict, start)
		}
	}
	return nil, nil
}

func (s *slotService) CreateSlots(ctx context.Context, actor utils.Actor, req *request.CreateSlotsRequest) (*response.GenerateSlotsResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create slots validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	target, err := s.publishTarget(ctx, req.ProviderID, req.ClinicID, req.HospitalID)
	if err != nil {
		return nil, err
	}
	date, err := s.futureDate(req.Date)
	if err != nil {
		return nil, err
	}

	visitType := visitTypeOrDefault(req.VisitType)
	price := scheduling.Price(visitType, target.provider.Fees())
	now := s.clock()

	rows := make([]*entity.AvailabilitySlot, 0, len(req.Slots))
	for i, t := range req.Slots {
		start, err := scheduling.ParseTimeOfDay(t.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: slots[%d]: %v", ErrValidation, i, err)
		}
		end, err := scheduling.ParseTimeOfDay(t.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: slots[%d]: %v", ErrValidation, i, err)
		}
		if end <= start {
			return nil, fmt.Errorf("%w: slots[%d] ends before it starts", ErrValidation, i)
		}
		duration := t.Duration
		if duration == 0 {
			duration = int(end - start)
		}

		candidate := scheduling.Candidate{
			Start:           start,
			End:             end,
			DurationMinutes: duration,
			VisitType:       visitType,
			Price:           price,
		}
		rows = append(rows, candidate.ToEntity(target.provider.ID, target.clinicID, target.hospitalID, date, now))
	}

	result, err := s.persist(ctx, rows)
	if err != nil {
		return nil, err
	}

	s.log.Info("Slots created",
		zap.String("provider_id", req.ProviderID),
		zap.String("date", req.Date),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	s.activity.record(ctx, actor, "slot.create", "provider", target.provider.ID,
		fmt.Sprintf("%s: %d created, %d skipped", req.Date, result.Created, result.Skipped))
	return result, nil
}

func (s *slotService) GenerateSlots(ctx context.Context, actor utils.Actor, req *request.GenerateSlotsRequest) (*response.GenerateSlotsResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Generate slots validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	target, err := s.publishTarget(ctx, req.ProviderID, req.ClinicID, req.HospitalID)
	if err != nil {
		return nil, err
	}

	from, err := s.futureDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	to, err := utils.ParseDate(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrValidation)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end_date is before start_date", ErrValidation)
	}
	today, now := s.today()
	if to.After(s.horizon(today)) {
		return nil, fmt.Errorf("%w: end_date is beyond the booking horizon", ErrValidation)
	}

	open, err := scheduling.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start_time: %v", ErrValidation, err)
	}
	closing, err := scheduling.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: end_time: %v", ErrValidation, err)
	}
	if closing <= open {
		return nil, fmt.Errorf("%w: end_time must be after start_time", ErrValidation)
	}

	brk, err := parseBreak(req.BreakStart, req.BreakEnd)
	if err != nil {
		return nil, err
	}

	duration := req.SlotDuration
	if duration == 0 {
		duration = 30
	}
	hours := scheduling.Hours{Open: open, Close: closing, SlotMinutes: duration}
	visitType := visitTypeOrDefault(req.VisitType)

	days := make(map[string]bool, len(req.WorkingDays))
	for _, d := range req.WorkingDays {
		days[strings.ToLower(d)] = true
	}

	stamp := s.clock()
	var rows []*entity.AvailabilitySlot
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if !days[strings.ToLower(date.Weekday().String())] {
			continue
		}
		candidates := scheduling.Generate(hours, visitType, target.provider.Fees(), brk)
		if date.Equal(today) {
			candidates = upcoming(candidates, now)
		}
		for _, c := range candidates {
			rows = append(rows, c.ToEntity(target.provider.ID, target.clinicID, target.hospitalID, date, stamp))
		}
	}

	result, err := s.persist(ctx, rows)
	if err != nil {
		return nil, err
	}

	s.log.Info("Slots generated",
		zap.String("provider_id", req.ProviderID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	s.activity.record(ctx, actor, "slot.generate", "provider", target.provider.ID,
		fmt.Sprintf("%s..%s: %d created, %d skipped", req.StartDate, req.EndDate, result.Created, result.Skipped))
	return result, nil
}

func (s *slotService) PublishSlots(ctx context.Context, actor utils.Actor, req *request.PublishSlotsRequest) (*response.GenerateSlotsResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	target, err := s.publishTarget(ctx, req.ProviderID, nil, nil)
	if err != nil {
		return nil, err
	}
	date, err := s.futureDate(req.Date)
	if err != nil {
		return nil, err
	}

	hours, err := s.resolve(ctx, target.provider, date)
	if err != nil {
		return nil, err
	}
	if hours.Closed {
		s.log.Info("Provider closed, nothing to publish",
			zap.String("provider_id", req.ProviderID),
			zap.String("date", req.Date),
		)
		return &response.GenerateSlotsResponse{}, nil
	}

	candidates := scheduling.Generate(hours, visitTypeOrDefault(req.VisitType), target.provider.Fees(), nil)
	if today, now := s.today(); date.Equal(today) {
		candidates = upcoming(candidates, now)
	}

	stamp := s.clock()
	rows := make([]*entity.AvailabilitySlot, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, c.ToEntity(target.provider.ID, hours.ClinicID, target.hospitalID, date, stamp))
	}

	result, err := s.persist(ctx, rows)
	if err != nil {
		return nil, err
	}

	s.log.Info("Slots published",
		zap.String("provider_id", req.ProviderID),
		zap.String("date", req.Date),
		zap.Bool("fallback", hours.Fallback),
		zap.Int("created", result.Created),
	)
	s.activity.record(ctx, actor, "slot.publish", "provider", target.provider.ID,
		fmt.Sprintf("%s: %d created, %d skipped", req.Date, result.Created, result.Skipped))
	return result, nil
}

func (s *slotService) UpdateSlotStatus(ctx context.Context, actor utils.Actor, slotID string, req *request.UpdateSlotStatusRequest) (*response.SlotResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	slot, err := s.findSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	target := entity.SlotStatus(req.Status)
	if slot.Status == target {
		resp := response.SlotToResponse(scheduling.FromEntity(slot))
		return &resp, nil
	}
	if slot.Status == entity.SlotBooked || slot.Status == entity.SlotCompleted {
		return nil, fmt.Errorf("%w: a %s slot cannot become %s", ErrIllegalTransition, slot.Status, target)
	}

	updated, err := s.repo.Slot.CompareAndSwapStatus(ctx, slot.ID, slot.Status, target, nil)
	switch {
	case errors.Is(err, repository.ErrStaleState):
		return nil, fmt.Errorf("%w: slot %s changed concurrently", ErrConflict, slotID)
	case errors.Is(err, repository.ErrDuplicate):
		return nil, fmt.Errorf("%w: another slot already occupies %s", ErrConflict, slot.StartTime)
	case err != nil:
		s.log.Error("Failed to update slot status", zap.Error(err), zap.String("slot_id", slotID))
		return nil, fmt.Errorf("update slot status: %w", err)
	}

	s.log.Info("Slot status updated",
		zap.String("slot_id", slotID),
		zap.String("from", string(slot.Status)),
		zap.String("to", string(target)),
	)
	s.activity.record(ctx, actor, "slot.status", "slot", slot.ID, fmt.Sprintf("%s -> %s", slot.Status, target))

	resp := response.SlotToResponse(scheduling.FromEntity(updated))
	return &resp, nil
}

func (s *slotService) DeleteSlot(ctx context.Context, actor utils.Actor, slotID string) error {
	slot, err := s.findSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.Status == entity.SlotBooked {
		return fmt.Errorf("%w: slot %s is booked", ErrConflict, slotID)
	}

	if err := s.repo.Slot.Delete(ctx, slot.ID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return fmt.Errorf("%w: slot %s is referenced by a booking, block it instead", ErrConflict, slotID)
		}
		s.log.Error("Failed to delete slot", zap.Error(err), zap.String("slot_id", slotID))
		return fmt.Errorf("delete slot: %w", err)
	}

	s.log.Info("Slot deleted", zap.String("slot_id", slotID))
	s.activity.record(ctx, actor, "slot.delete", "slot", slot.ID, slot.Date.Format("2006-01-02")+" "+slot.StartTime)
	return nil
}

func (s *slotService) findSlot(ctx context.Context, slotID string) (*entity.AvailabilitySlot, error) {
	id, err := parseID("slot", slotID)
	if err != nil {
		return nil, err
	}
	slot, err := s.repo.Slot.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to find slot", zap.Error(err), zap.String("slot_id", slotID))
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
	}
	return slot, nil
}

type publishTarget struct {
	provider   *entity.Provider
	clinicID   *uuid.UUID
	hospitalID *uuid.UUID
}

// publishTarget loads the provider and settles clinic and hospital, falling
// back to the provider's own.
func (s *slotService) publishTarget(ctx context.Context, providerID string, clinicID, hospitalID *string) (*publishTarget, error) {
	id, err := parseID("provider", providerID)
	if err != nil {
		return nil, err
	}
	provider, err := s.findProvider(ctx, id)
	if err != nil {
		return nil, err
	}

	target := &publishTarget{provider: provider, clinicID: provider.ClinicID, hospitalID: provider.HospitalID}
	if cid, err := parseOptionalIDPtr("clinic", clinicID); err != nil {
		return nil, err
	} else if cid != nil {
		target.clinicID = cid
	}
	if hid, err := parseOptionalIDPtr("hospital", hospitalID); err != nil {
		return nil, err
	} else if hid != nil {
		target.hospitalID = hid
	}
	return target, nil
}

func (s *slotService) futureDate(value string) (time.Time, error) {
	date, err := utils.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	if today, _ := s.today(); date.Before(today) {
		return time.Time{}, fmt.Errorf("%w: %s is in the past", ErrValidation, value)
	}
	return date, nil
}

func (s *slotService) persist(ctx context.Context, rows []*entity.AvailabilitySlot) (*response.GenerateSlotsResponse, error) {
	created := 0
	for start := 0; start < len(rows); start += slotBatchSize {
		end := min(start+slotBatchSize, len(rows))
		n, err := s.repo.Slot.CreateBatch(ctx, rows[start:end])
		if err != nil {
			s.log.Error("Failed to persist slots", zap.Error(err), zap.Int("batch", len(rows[start:end])))
			return nil, fmt.Errorf("persist slots: %w", err)
		}
		created += n
	}
	return &response.GenerateSlotsResponse{Created: created, Skipped: len(rows) - created}, nil
}

func parseBreak(start, end *string) (*scheduling.Break, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	if start == nil || end == nil {
		return nil, fmt.Errorf("%w: break_start and break_end must be given together", ErrValidation)
	}
	from, err := scheduling.ParseTimeOfDay(*start)
	if err != nil {
		return nil, fmt.Errorf("%w: break_start: %v", ErrValidation, err)
	}
	to, err := scheduling.ParseTimeOfDay(*end)
	if err != nil {
		return nil, fmt.Errorf("%w: break_end: %v", ErrValidation, err)
	}
	if to <= from {
		return nil, fmt.Errorf("%w: break_end must be after break_start", ErrValidation)
	}
	return &scheduling.Break{Start: from, End: to}, nil
}

func visitTypeOrDefault(v string) entity.VisitType {
	if v == "" {
		return entity.VisitClinic
	}
	return entity.VisitType(v)
}
