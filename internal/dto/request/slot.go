package request

// ListSlotsRequest mirrors the query string of GET /api/slots.
type ListSlotsRequest struct {
	ProviderID string `json:"provider_id" validate:"omitempty,uuid"`
	ClinicID   string `json:"clinic_id" validate:"omitempty,uuid"`
	HospitalID string `json:"hospital_id" validate:"omitempty,uuid"`
	Type       string `json:"type" validate:"omitempty,oneof=clinic online home"`
	Status     string `json:"status" validate:"omitempty,oneof=available booked blocked completed"`
	Date       string `json:"date" validate:"omitempty,isodate"`
	StartDate  string `json:"start_date" validate:"omitempty,isodate"`
	EndDate    string `json:"end_date" validate:"omitempty,isodate"`
}

type MaterializeSlotRequest struct {
	SlotKey string `json:"slot_key" validate:"required"`
}

type SlotTimeRequest struct {
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
	Duration  int    `json:"duration" validate:"omitempty,min=5,max=480"`
}

type CreateSlotsRequest struct {
	ProviderID string            `json:"provider_id" validate:"required,uuid"`
	ClinicID   *string           `json:"clinic_id,omitempty" validate:"omitempty,uuid"`
	HospitalID *string           `json:"hospital_id,omitempty" validate:"omitempty,uuid"`
	Date       string            `json:"date" validate:"required,isodate"`
	VisitType  string            `json:"type" validate:"omitempty,oneof=clinic online home"`
	Slots      []SlotTimeRequest `json:"slots" validate:"required,min=1,dive"`
}

type GenerateSlotsRequest struct {
	ProviderID   string   `json:"provider_id" validate:"required,uuid"`
	ClinicID     *string  `json:"clinic_id,omitempty" validate:"omitempty,uuid"`
	HospitalID   *string  `json:"hospital_id,omitempty" validate:"omitempty,uuid"`
	StartDate    string   `json:"start_date" validate:"required,isodate"`
	EndDate      string   `json:"end_date" validate:"required,isodate"`
	WorkingDays  []string `json:"working_days" validate:"required,min=1,dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	StartTime    string   `json:"start_time" validate:"required,hhmm"`
	EndTime      string   `json:"end_time" validate:"required,hhmm"`
	SlotDuration int      `json:"slot_duration" validate:"omitempty,min=5,max=480"`
	BreakStart   *string  `json:"break_start,omitempty" validate:"omitempty,hhmm"`
	BreakEnd     *string  `json:"break_end,omitempty" validate:"omitempty,hhmm"`
	VisitType    string   `json:"type" validate:"omitempty,oneof=clinic online home"`
}

// PublishSlotsRequest persists the resolved schedule of one date.
type PublishSlotsRequest struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,isodate"`
	VisitType  string `json:"type" validate:"omitempty,oneof=clinic online home"`
}

type UpdateSlotStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available blocked"`
}
