package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"

	"github.com/google/uuid"
)

var ErrMalformedSlotRef = errors.New("malformed slot reference")

const projectedPrefix = "v_"

// SlotKind tags a listed slot as either a persisted, claimable row or a
// display-only projection of the working hours grid.
type SlotKind string

const (
	Materialized SlotKind = "materialized"
	Projected    SlotKind = "projected"
)

// ProjectedKey identifies a slot that exists only as a point on a provider's
// hours grid. Its string form is v_<provider>_<yyyymmdd>_<HHMM>_<type>.
type ProjectedKey struct {
	ProviderID uuid.UUID
	Date       time.Time
	Start      TimeOfDay
	VisitType  entity.VisitType
}

func (k ProjectedKey) String() string {
	return fmt.Sprintf("%s%s_%s_%s_%s",
		projectedPrefix, k.ProviderID, k.Date.Format("20060102"), k.Start.compact(), k.VisitType)
}

func IsProjectedKey(s string) bool {
	return strings.HasPrefix(s, projectedPrefix)
}

func ParseProjectedKey(s string) (ProjectedKey, error) {
	if !IsProjectedKey(s) {
		return ProjectedKey{}, fmt.Errorf("%w: %q", ErrMalformedSlotRef, s)
	}
	parts := strings.Split(strings.TrimPrefix(s, projectedPrefix), "_")
	if len(parts) != 4 {
		return ProjectedKey{}, fmt.Errorf("%w: %q", ErrMalformedSlotRef, s)
	}

	providerID, err := uuid.Parse(parts[0])
	if err != nil {
		return ProjectedKey{}, fmt.Errorf("%w: provider: %v", ErrMalformedSlotRef, err)
	}
	date, err := time.Parse("20060102", parts[1])
	if err != nil {
		return ProjectedKey{}, fmt.Errorf("%w: date: %v", ErrMalformedSlotRef, err)
	}
	if len(parts[2]) != 4 {
		return ProjectedKey{}, fmt.Errorf("%w: start %q", ErrMalformedSlotRef, parts[2])
	}
	start, err := ParseTimeOfDay(parts[2][:2] + ":" + parts[2][2:])
	if err != nil {
		return ProjectedKey{}, fmt.Errorf("%w: %v", ErrMalformedSlotRef, err)
	}

	visitType := entity.VisitType(parts[3])
	switch visitType {
	case entity.VisitClinic, entity.VisitOnline, entity.VisitHome:
	default:
		return ProjectedKey{}, fmt.Errorf("%w: visit type %q", ErrMalformedSlotRef, parts[3])
	}

	return ProjectedKey{ProviderID: providerID, Date: date, Start: start, VisitType: visitType}, nil
}

// Slot is a listing entry. Materialized slots carry their row ID; projected
// ones carry only Key and must be materialized before they can be booked.
type Slot struct {
	Kind            SlotKind
	ID              uuid.UUID
	Key             string
	ProviderID      uuid.UUID
	ClinicID        *uuid.UUID
	HospitalID      *uuid.UUID
	Date            time.Time
	StartTime       string
	EndTime         string
	DurationMinutes int
	VisitType       entity.VisitType
	Status          entity.SlotStatus
	Price           float64
}

// Ref is what a client sends back to book or materialize this slot.
func (s Slot) Ref() string {
	if s.Kind == Projected {
		return s.Key
	}
	return s.ID.String()
}

func FromEntity(e *entity.AvailabilitySlot) Slot {
	return Slot{
		Kind:            Materialized,
		ID:              e.ID,
		ProviderID:      e.ProviderID,
		ClinicID:        e.ClinicID,
		HospitalID:      e.HospitalID,
		Date:            e.Date,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		DurationMinutes: e.DurationMinutes,
		VisitType:       e.VisitType,
		Status:          e.Status,
		Price:           e.Price,
	}
}

// Project turns generated candidates into display-only slots.
func Project(providerID uuid.UUID, hours Hours, date time.Time, candidates []Candidate) []Slot {
	out := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		key := ProjectedKey{ProviderID: providerID, Date: date, Start: c.Start, VisitType: c.VisitType}
		out = append(out, Slot{
			Kind:            Projected,
			Key:             key.String(),
			ProviderID:      providerID,
			ClinicID:        hours.ClinicID,
			Date:            date,
			StartTime:       c.Start.String(),
			EndTime:         c.End.String(),
			DurationMinutes: c.DurationMinutes,
			VisitType:       c.VisitType,
			Status:          entity.SlotAvailable,
			Price:           c.Price,
		})
	}
	return out
}

// ToEntity builds the row a candidate becomes when it is persisted.
func (c Candidate) ToEntity(providerID uuid.UUID, clinicID, hospitalID *uuid.UUID, date time.Time, now time.Time) *entity.AvailabilitySlot {
	return &entity.AvailabilitySlot{
		BaseNoDelete:    entity.NewBaseNoDelete(now),
		ProviderID:      providerID,
		ClinicID:        clinicID,
		HospitalID:      hospitalID,
		Date:            date,
		StartTime:       c.Start.String(),
		EndTime:         c.End.String(),
		DurationMinutes: c.DurationMinutes,
		VisitType:       c.VisitType,
		Status:          entity.SlotAvailable,
		Price:           c.Price,
	}
}
