package response

import (
	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/scheduling"
)

// SlotResponse is one listing entry. ID is the booking reference for
// materialized slots and the projected key otherwise.
type SlotResponse struct {
	ID         string              `json:"id"`
	Kind       scheduling.SlotKind `json:"kind"`
	ProviderID string              `json:"provider_id"`
	ClinicID   *string             `json:"clinic_id,omitempty"`
	HospitalID *string             `json:"hospital_id,omitempty"`
	Date       string              `json:"date"`
	StartTime  string              `json:"start_time"`
	EndTime    string              `json:"end_time"`
	Duration   int                 `json:"duration"`
	Type       entity.VisitType    `json:"type"`
	Status     entity.SlotStatus   `json:"status"`
	Price      float64             `json:"price"`
}

type GenerateSlotsResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

func SlotToResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:         s.Ref(),
		Kind:       s.Kind,
		ProviderID: s.ProviderID.String(),
		ClinicID:   uuidString(s.ClinicID),
		HospitalID: uuidString(s.HospitalID),
		Date:       s.Date.Format("2006-01-02"),
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Duration:   s.DurationMinutes,
		Type:       s.VisitType,
		Status:     s.Status,
		Price:      s.Price,
	}
}

func SlotsToResponse(slots []scheduling.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotToResponse(s))
	}
	return out
}
