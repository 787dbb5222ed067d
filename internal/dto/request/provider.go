package request

type ProviderRequest struct {
	Name              string   `json:"name" validate:"required,min=2,max=200"`
	Specialty         string   `json:"specialty" validate:"omitempty,max=120"`
	ClinicID          *string  `json:"clinic_id,omitempty" validate:"omitempty,uuid"`
	HospitalID        *string  `json:"hospital_id,omitempty" validate:"omitempty,uuid"`
	ConsultationFee   float64  `json:"consultation_fee" validate:"min=0"`
	OnlineFee         *float64 `json:"online_fee,omitempty" validate:"omitempty,min=0"`
	HomeVisitFee      *float64 `json:"home_visit_fee,omitempty" validate:"omitempty,min=0"`
	ReceptionMode     string   `json:"reception_mode" validate:"omitempty,oneof=open limited"`
	ReceptionCapacity int      `json:"reception_capacity" validate:"min=0"`
}

type ListProvidersRequest struct {
	PaginatedRequest
	ClinicID   string `json:"clinic_id" validate:"omitempty,uuid"`
	HospitalID string `json:"hospital_id" validate:"omitempty,uuid"`
	Specialty  string `json:"specialty" validate:"omitempty,max=120"`
}

type WorkingDayRequest struct {
	Day       string  `json:"day" validate:"required,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	IsOpen    bool    `json:"is_open"`
	OpenTime  *string `json:"open_time,omitempty" validate:"omitempty,hhmm"`
	CloseTime *string `json:"close_time,omitempty" validate:"omitempty,hhmm"`
}

type ClinicRequest struct {
	Name                string              `json:"name" validate:"required,min=2,max=200"`
	Address             string              `json:"address" validate:"omitempty,max=500"`
	Phone               string              `json:"phone" validate:"omitempty,max=32"`
	WorkingHours        []WorkingDayRequest `json:"working_hours" validate:"omitempty,max=7,dive"`
	DefaultOpenTime     string              `json:"default_open_time" validate:"omitempty,hhmm"`
	DefaultCloseTime    string              `json:"default_close_time" validate:"omitempty,hhmm"`
	SlotDurationMinutes int                 `json:"slot_duration_minutes" validate:"omitempty,min=5,max=480"`
	ClosedDates         []string            `json:"closed_dates" validate:"omitempty,dive,isodate"`
}
