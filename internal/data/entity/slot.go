package entity

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
	SlotCompleted SlotStatus = "completed"
)

type VisitType string

const (
	VisitClinic VisitType = "clinic"
	VisitOnline VisitType = "online"
	VisitHome   VisitType = "home"
)

// AvailabilitySlot is a persisted, claimable time window. Price is fixed at
// creation.
type AvailabilitySlot struct {
	BaseNoDelete
	ProviderID      uuid.UUID  `db:"provider_id"`
	ClinicID        *uuid.UUID `db:"clinic_id"`
	HospitalID      *uuid.UUID `db:"hospital_id"`
	Date            time.Time  `db:"slot_date"`
	StartTime       string     `db:"start_time"`
	EndTime         string     `db:"end_time"`
	DurationMinutes int        `db:"duration_minutes"`
	VisitType       VisitType  `db:"visit_type"`
	Status          SlotStatus `db:"status"`
	Price           float64    `db:"price"`
	BookingID       *uuid.UUID `db:"booking_id"`
	Notes           *string    `db:"notes"`
}
