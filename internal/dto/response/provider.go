package response

import (
	"time"

	"clinic-booking/internal/data/entity"
)

type ProviderResponse struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Specialty         string               `json:"specialty"`
	ClinicID          *string              `json:"clinic_id,omitempty"`
	HospitalID        *string              `json:"hospital_id,omitempty"`
	ConsultationFee   float64              `json:"consultation_fee"`
	OnlineFee         *float64             `json:"online_fee,omitempty"`
	HomeVisitFee      *float64             `json:"home_visit_fee,omitempty"`
	Rating            float64              `json:"rating"`
	ReviewCount       int                  `json:"review_count"`
	ReceptionMode     entity.ReceptionMode `json:"reception_mode"`
	ReceptionCapacity int                  `json:"reception_capacity"`
	TotalPatients     int                  `json:"total_patients"`
	CreatedAt         time.Time            `json:"created_at"`
}

type ClinicResponse struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Address             string              `json:"address"`
	Phone               string              `json:"phone"`
	WorkingHours        []entity.WorkingDay `json:"working_hours"`
	DefaultOpenTime     string              `json:"default_open_time"`
	DefaultCloseTime    string              `json:"default_close_time"`
	SlotDurationMinutes int                 `json:"slot_duration_minutes"`
	ClosedDates         []string            `json:"closed_dates"`
	CreatedAt           time.Time           `json:"created_at"`
}

func ProviderToResponse(p *entity.Provider) ProviderResponse {
	return ProviderResponse{
		ID:                p.ID.String(),
		Name:              p.Name,
		Specialty:         p.Specialty,
		ClinicID:          uuidString(p.ClinicID),
		HospitalID:        uuidString(p.HospitalID),
		ConsultationFee:   p.ConsultationFee,
		OnlineFee:         p.OnlineFee,
		HomeVisitFee:      p.HomeVisitFee,
		Rating:            p.Rating,
		ReviewCount:       p.ReviewCount,
		ReceptionMode:     p.ReceptionMode,
		ReceptionCapacity: p.ReceptionCapacity,
		TotalPatients:     p.TotalPatients,
		CreatedAt:         p.CreatedAt,
	}
}

func ClinicToResponse(c *entity.Clinic) ClinicResponse {
	return ClinicResponse{
		ID:                  c.ID.String(),
		Name:                c.Name,
		Address:             c.Address,
		Phone:               c.Phone,
		WorkingHours:        c.WorkingHours,
		DefaultOpenTime:     c.DefaultOpenTime,
		DefaultCloseTime:    c.DefaultCloseTime,
		SlotDurationMinutes: c.SlotDurationMinutes,
		ClosedDates:         c.ClosedDates,
		CreatedAt:           c.CreatedAt,
	}
}
