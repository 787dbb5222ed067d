package request

type CreateBookingRequest struct {
	// SlotID must reference a persisted slot. Projected slot keys are
	// rejected; materialize them first.
	SlotID        string  `json:"slot_id" validate:"required"`
	PatientName   *string `json:"patient_name,omitempty" validate:"omitempty,min=2,max=120"`
	PatientPhone  *string `json:"patient_phone,omitempty" validate:"omitempty,min=8,max=20"`
	PatientEmail  *string `json:"patient_email,omitempty" validate:"omitempty,email"`
	PatientAge    *int    `json:"patient_age,omitempty" validate:"omitempty,min=0,max=150"`
	PatientGender *string `json:"patient_gender,omitempty" validate:"omitempty,oneof=male female"`
	Address       *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Symptoms      *string `json:"symptoms,omitempty" validate:"omitempty,max=2000"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=cash wallet"`
	DiscountCode  *string `json:"discount_code,omitempty" validate:"omitempty,max=32"`
}

type ListBookingsRequest struct {
	PaginatedRequest
	Status     string `json:"status" validate:"omitempty,oneof=pending confirmed completed cancelled no_show"`
	ProviderID string `json:"provider_id" validate:"omitempty,uuid"`
	StartDate  string `json:"start_date" validate:"omitempty,isodate"`
	EndDate    string `json:"end_date" validate:"omitempty,isodate"`
}

type UpdateBookingStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=confirmed cancelled completed no_show"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type RescheduleBookingRequest struct {
	NewSlotID string  `json:"new_slot_id" validate:"required"`
	Reason    *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type SubmitReviewRequest struct {
	Rating int     `json:"rating" validate:"required,min=1,max=5"`
	Review *string `json:"review,omitempty" validate:"omitempty,max=2000"`
}
