package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/internal/scheduling"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type ProviderService interface {
	// Public endpoints
	ListProviders(ctx context.Context, req *request.ListProvidersRequest) (*response.PaginatedResponse[response.ProviderResponse], error)
	GetProvider(ctx context.Context, providerID string) (*response.ProviderResponse, error)
	GetClinic(ctx context.Context, clinicID string) (*response.ClinicResponse, error)
	ListClinics(ctx context.Context) ([]response.ClinicResponse, error)

	// Admin endpoints
	CreateProvider(ctx context.Context, actor utils.Actor, req *request.ProviderRequest) (*response.ProviderResponse, error)
	UpdateProvider(ctx context.Context, actor utils.Actor, providerID string, req *request.ProviderRequest) (*response.ProviderResponse, error)
	CreateClinic(ctx context.Context, actor utils.Actor, req *request.ClinicRequest) (*response.ClinicResponse, error)
	UpdateClinic(ctx context.Context, actor utils.Actor, clinicID string, req *request.ClinicRequest) (*response.ClinicResponse, error)
}

type providerService struct {
	repo     *repository.Repository
	clock    func() time.Time
	activity *activityRecorder
	log      *zap.Logger
}

func NewProviderService(repo *repository.Repository, clock func() time.Time, activity *activityRecorder, log *zap.Logger) ProviderService {
	return &providerService{
		repo:     repo,
		clock:    clock,
		activity: activity,
		log:      log.With(zap.String("service", "provider")),
	}
}

func (s *providerService) ListProviders(ctx context.Context, req *request.ListProvidersRequest) (*response.PaginatedResponse[response.ProviderResponse], error) {
	normalizePage(&req.PaginatedRequest)
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	filter := repository.ProviderFilter{
		Specialty: req.Specialty,
		Limit:     req.Limit(),
		Offset:    req.Offset(),
	}
	var err error
	if filter.ClinicID, err = parseOptionalID("clinic", req.ClinicID); err != nil {
		return nil, err
	}
	if filter.HospitalID, err = parseOptionalID("hospital", req.HospitalID); err != nil {
		return nil, err
	}

	providers, err := s.repo.Provider.List(ctx, filter)
	if err != nil {
		s.log.Error("Failed to list providers", zap.Error(err))
		return nil, fmt.Errorf("list providers: %w", err)
	}
	total, err := s.repo.Provider.Count(ctx, filter)
	if err != nil {
		s.log.Error("Failed to count providers", zap.Error(err))
		return nil, fmt.Errorf("count providers: %w", err)
	}

	data := make([]response.ProviderResponse, len(providers))
	for i, p := range providers {
		data[i] = response.ProviderToResponse(p)
	}
	return response.NewPaginatedResponse(data, req.Page, req.PerPage, total), nil
}

func (s *providerService) GetProvider(ctx context.Context, providerID string) (*response.ProviderResponse, error) {
	provider, err := s.findProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	resp := response.ProviderToResponse(provider)
	return &resp, nil
}

func (s *providerService) findProvider(ctx context.Context, providerID string) (*entity.Provider, error) {
	id, err := parseID("provider", providerID)
	if err != nil {
		return nil, err
	}
	provider, err := s.repo.Provider.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to find provider", zap.Error(err), zap.String("provider_id", providerID))
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, providerID)
	}
	return provider, nil
}

func (s *providerService) CreateProvider(ctx context.Context, actor utils.Actor, req *request.ProviderRequest) (*response.ProviderResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create provider validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	provider := &entity.Provider{
		BaseNoDelete: entity.NewBaseNoDelete(s.clock()),
		IsActive:     true,
	}
	if err := s.applyProvider(ctx, provider, req); err != nil {
		return nil, err
	}

	if err := s.repo.Provider.Create(ctx, provider); err != nil {
		s.log.Error("Failed to create provider", zap.Error(err), zap.String("name", req.Name))
		return nil, fmt.Errorf("create provider: %w", err)
	}

	s.activity.record(ctx, actor, "provider.create", "provider", provider.ID, provider.Name)
	s.log.Info("Provider created",
		zap.String("provider_id", provider.ID.String()),
		zap.String("reception_mode", string(provider.ReceptionMode)),
	)

	resp := response.ProviderToResponse(provider)
	return &resp, nil
}

func (s *providerService) UpdateProvider(ctx context.Context, actor utils.Actor, providerID string, req *request.ProviderRequest) (*response.ProviderResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Update provider validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}
	provider, err := s.findProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if err := s.applyProvider(ctx, provider, req); err != nil {
		return nil, err
	}
	provider.UpdatedAt = s.clock()

	if err := s.repo.Provider.Update(ctx, provider); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%w: provider %s", ErrNotFound, providerID)
		}
		s.log.Error("Failed to update provider", zap.Error(err), zap.String("provider_id", providerID))
		return nil, fmt.Errorf("update provider: %w", err)
	}

	s.activity.record(ctx, actor, "provider.update", "provider", provider.ID, provider.Name)
	resp := response.ProviderToResponse(provider)
	return &resp, nil
}

// applyProvider copies the request onto provider. Rating, review count and
// patient totals are owned by the booking flow and never set here.
func (s *providerService) applyProvider(ctx context.Context, provider *entity.Provider, req *request.ProviderRequest) error {
	clinicID, err := parseOptionalIDPtr("clinic", req.ClinicID)
	if err != nil {
		return err
	}
	if clinicID != nil {
		clinic, err := s.repo.Clinic.FindByID(ctx, *clinicID)
		if err != nil {
			return fmt.Errorf("find clinic: %w", err)
		}
		if clinic == nil {
			return fmt.Errorf("%w: clinic %s", ErrNotFound, *clinicID)
		}
	}
	hospitalID, err := parseOptionalIDPtr("hospital", req.HospitalID)
	if err != nil {
		return err
	}

	mode := entity.ReceptionMode(req.ReceptionMode)
	if mode == "" {
		mode = entity.ReceptionOpen
	}
	if mode == entity.ReceptionLimited && req.ReceptionCapacity < 1 {
		return fmt.Errorf("%w: limited reception needs a capacity of at least 1", ErrValidation)
	}

	provider.Name = req.Name
	provider.Specialty = req.Specialty
	provider.ClinicID = clinicID
	provider.HospitalID = hospitalID
	provider.ConsultationFee = req.ConsultationFee
	provider.OnlineFee = req.OnlineFee
	provider.HomeVisitFee = req.HomeVisitFee
	provider.ReceptionMode = mode
	provider.ReceptionCapacity = req.ReceptionCapacity
	return nil
}

func (s *providerService) GetClinic(ctx context.Context, clinicID string) (*response.ClinicResponse, error) {
	clinic, err := s.findClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	resp := response.ClinicToResponse(clinic)
	return &resp, nil
}

func (s *providerService) ListClinics(ctx context.Context) ([]response.ClinicResponse, error) {
	clinics, err := s.repo.Clinic.FindAll(ctx)
	if err != nil {
		s.log.Error("Failed to list clinics", zap.Error(err))
		return nil, fmt.Errorf("list clinics: %w", err)
	}

	data := make([]response.ClinicResponse, len(clinics))
	for i, c := range clinics {
		data[i] = response.ClinicToResponse(c)
	}
	return data, nil
}

func (s *providerService) findClinic(ctx context.Context, clinicID string) (*entity.Clinic, error) {
	id, err := parseID("clinic", clinicID)
	if err != nil {
		return nil, err
	}
	clinic, err := s.repo.Clinic.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to find clinic", zap.Error(err), zap.String("clinic_id", clinicID))
		return nil, fmt.Errorf("find clinic: %w", err)
	}
	if clinic == nil {
		return nil, fmt.Errorf("%w: clinic %s", ErrNotFound, clinicID)
	}
	return clinic, nil
}

func (s *providerService) CreateClinic(ctx context.Context, actor utils.Actor, req *request.ClinicRequest) (*response.ClinicResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create clinic validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	clinic := &entity.Clinic{
		BaseNoDelete: entity.NewBaseNoDelete(s.clock()),
		IsActive:     true,
	}
	if err := applyClinic(clinic, req); err != nil {
		return nil, err
	}

	if err := s.repo.Clinic.Create(ctx, clinic); err != nil {
		s.log.Error("Failed to create clinic", zap.Error(err), zap.String("name", req.Name))
		return nil, fmt.Errorf("create clinic: %w", err)
	}

	s.activity.record(ctx, actor, "clinic.create", "clinic", clinic.ID, clinic.Name)
	s.log.Info("Clinic created", zap.String("clinic_id", clinic.ID.String()))

	resp := response.ClinicToResponse(clinic)
	return &resp, nil
}

func (s *providerService) UpdateClinic(ctx context.Context, actor utils.Actor, clinicID string, req *request.ClinicRequest) (*response.ClinicResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Update clinic validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}
	clinic, err := s.findClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	if err := applyClinic(clinic, req); err != nil {
		return nil, err
	}
	clinic.UpdatedAt = s.clock()

	if err := s.repo.Clinic.Update(ctx, clinic); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%w: clinic %s", ErrNotFound, clinicID)
		}
		s.log.Error("Failed to update clinic", zap.Error(err), zap.String("clinic_id", clinicID))
		return nil, fmt.Errorf("update clinic: %w", err)
	}

	s.activity.record(ctx, actor, "clinic.update", "clinic", clinic.ID, clinic.Name)
	resp := response.ClinicToResponse(clinic)
	return &resp, nil
}

// applyClinic copies the request onto clinic and checks every window it
// defines is well formed, so the resolver never meets open >= close.
func applyClinic(clinic *entity.Clinic, req *request.ClinicRequest) error {
	opens, closes := req.DefaultOpenTime, req.DefaultCloseTime
	if opens == "" {
		opens = "09:00"
	}
	if closes == "" {
		closes = "21:00"
	}
	if err := checkWindow("default", opens, closes); err != nil {
		return err
	}

	seen := make(map[string]bool, len(req.WorkingHours))
	days := make([]entity.WorkingDay, 0, len(req.WorkingHours))
	for _, d := range req.WorkingHours {
		if seen[d.Day] {
			return fmt.Errorf("%w: %s is listed twice", ErrValidation, d.Day)
		}
		seen[d.Day] = true

		if d.IsOpen {
			dayOpen, dayClose := opens, closes
			if d.OpenTime != nil {
				dayOpen = *d.OpenTime
			}
			if d.CloseTime != nil {
				dayClose = *d.CloseTime
			}
			if err := checkWindow(d.Day, dayOpen, dayClose); err != nil {
				return err
			}
		}
		days = append(days, entity.WorkingDay{
			Day:       d.Day,
			IsOpen:    d.IsOpen,
			OpenTime:  d.OpenTime,
			CloseTime: d.CloseTime,
		})
	}

	duration := req.SlotDurationMinutes
	if duration == 0 {
		duration = 30
	}
	closed := req.ClosedDates
	if closed == nil {
		closed = []string{}
	}

	clinic.Name = req.Name
	clinic.Address = req.Address
	clinic.Phone = req.Phone
	clinic.WorkingHours = days
	clinic.DefaultOpenTime = opens
	clinic.DefaultCloseTime = closes
	clinic.SlotDurationMinutes = duration
	clinic.ClosedDates = closed
	return nil
}

func checkWindow(label, opens, closes string) error {
	o, err := scheduling.ParseTimeOfDay(opens)
	if err != nil {
		return fmt.Errorf("%w: %s open time: %v", ErrValidation, label, err)
	}
	c, err := scheduling.ParseTimeOfDay(closes)
	if err != nil {
		return fmt.Errorf("%w: %s close time: %v", ErrValidation, label, err)
	}
	if o >= c {
		return fmt.Errorf("%w: %s opens at %s but closes at %s", ErrValidation, label, opens, closes)
	}
	return nil
}
