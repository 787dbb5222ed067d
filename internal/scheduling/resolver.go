package scheduling

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownClinic = errors.New("clinic not found")
	ErrInvalidHours  = errors.New("invalid working hours")
)

// Hours is the outcome of resolving a date: either Closed, or an open window
// with its slot granularity. Fallback marks a window that came from the
// system default rather than a clinic schedule.
type Hours struct {
	Closed      bool
	Open        TimeOfDay
	Close       TimeOfDay
	SlotMinutes int
	Fallback    bool
	ClinicID    *uuid.UUID
}

// ClinicSource is the read side of the clinic store the resolver needs.
type ClinicSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Clinic, error)
}

type FallbackWindow struct {
	Open        TimeOfDay
	Close       TimeOfDay
	SlotMinutes int
}

type Resolver struct {
	clinics  ClinicSource
	fallback FallbackWindow
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewResolver(clinics ClinicSource, fallback FallbackWindow, m *metrics.Metrics, log *zap.Logger) *Resolver {
	return &Resolver{
		clinics:  clinics,
		fallback: fallback,
		metrics:  m,
		log:      log.With(zap.String("component", "working_hours")),
	}
}

// Resolve returns the working window for date. A nil clinicID resolves to the
// fallback window.
func (r *Resolver) Resolve(ctx context.Context, clinicID *uuid.UUID, date time.Time) (Hours, error) {
	if clinicID == nil {
		r.log.Warn("No clinic schedule, using fallback window",
			zap.Bool("fallback", true),
			zap.String("date", date.Format("2006-01-02")),
			zap.String("open", r.fallback.Open.String()),
			zap.String("close", r.fallback.Close.String()),
		)
		r.metrics.HoursResolved.WithLabelValues("fallback").Inc()
		return Hours{
			Open:        r.fallback.Open,
			Close:       r.fallback.Close,
			SlotMinutes: r.fallback.SlotMinutes,
			Fallback:    true,
		}, nil
	}

	clinic, err := r.clinics.FindByID(ctx, *clinicID)
	if err != nil {
		return Hours{}, fmt.Errorf("load clinic schedule: %w", err)
	}
	if clinic == nil {
		return Hours{}, fmt.Errorf("%w: %s", ErrUnknownClinic, clinicID)
	}

	hours, err := ResolveClinic(clinic, date)
	if err != nil {
		r.log.Error("Clinic schedule is malformed",
			zap.Error(err),
			zap.String("clinic_id", clinicID.String()),
		)
		return Hours{}, err
	}

	outcome := "clinic"
	if hours.Closed {
		outcome = "closed"
	}
	r.metrics.HoursResolved.WithLabelValues(outcome).Inc()
	return hours, nil
}

// ResolveClinic applies a clinic's weekly schedule to one date. A weekday
// without an entry, an entry marked closed, or a listed closed date all
// resolve to Closed.
func ResolveClinic(clinic *entity.Clinic, date time.Time) (Hours, error) {
	closed := Hours{Closed: true, ClinicID: &clinic.ID}

	if slices.Contains(clinic.ClosedDates, date.Format("2006-01-02")) {
		return closed, nil
	}

	day := strings.ToLower(date.Weekday().String())
	idx := slices.IndexFunc(clinic.WorkingHours, func(w entity.WorkingDay) bool {
		return strings.EqualFold(w.Day, day)
	})
	if idx < 0 || !clinic.WorkingHours[idx].IsOpen {
		return closed, nil
	}
	entry := clinic.WorkingHours[idx]

	openStr, closeStr := clinic.DefaultOpenTime, clinic.DefaultCloseTime
	if entry.OpenTime != nil && *entry.OpenTime != "" {
		openStr = *entry.OpenTime
	}
	if entry.CloseTime != nil && *entry.CloseTime != "" {
		closeStr = *entry.CloseTime
	}

	open, err := ParseTimeOfDay(openStr)
	if err != nil {
		return Hours{}, fmt.Errorf("%w: %v", ErrInvalidHours, err)
	}
	closing, err := ParseTimeOfDay(closeStr)
	if err != nil {
		return Hours{}, fmt.Errorf("%w: %v", ErrInvalidHours, err)
	}
	if clinic.SlotDurationMinutes <= 0 {
		return Hours{}, fmt.Errorf("%w: slot duration %d", ErrInvalidHours, clinic.SlotDurationMinutes)
	}

	return Hours{
		Open:        open,
		Close:       closing,
		SlotMinutes: clinic.SlotDurationMinutes,
		ClinicID:    &clinic.ID,
	}, nil
}
