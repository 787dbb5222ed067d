package entity

import (
	"github.com/google/uuid"
)

type ReceptionMode string

const (
	ReceptionOpen    ReceptionMode = "open"
	ReceptionLimited ReceptionMode = "limited"
)

// Provider is a bookable practitioner. Rating and ReviewCount are the running
// aggregate maintained on review submission.
type Provider struct {
	BaseNoDelete
	Name              string        `db:"name"`
	Specialty         string        `db:"specialty"`
	ClinicID          *uuid.UUID    `db:"clinic_id"`
	HospitalID        *uuid.UUID    `db:"hospital_id"`
	ConsultationFee   float64       `db:"consultation_fee"`
	OnlineFee         *float64      `db:"online_fee"`
	HomeVisitFee      *float64      `db:"home_visit_fee"`
	Rating            float64       `db:"rating"`
	ReviewCount       int           `db:"review_count"`
	ReceptionMode     ReceptionMode `db:"reception_mode"`
	ReceptionCapacity int           `db:"reception_capacity"`
	TotalPatients     int           `db:"total_patients"`
	IsActive          bool          `db:"is_active"`
}

// Fees is the fee schedule consumed by slot pricing.
type Fees struct {
	Consultation float64
	Online       *float64
	HomeVisit    *float64
}

func (p *Provider) Fees() Fees {
	return Fees{
		Consultation: p.ConsultationFee,
		Online:       p.OnlineFee,
		HomeVisit:    p.HomeVisitFee,
	}
}

func (p *Provider) IsLimited() bool {
	return p.ReceptionMode == ReceptionLimited
}
