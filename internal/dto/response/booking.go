package response

import (
	"time"

	"clinic-booking/internal/data/entity"

	"github.com/google/uuid"
)

type PatientResponse struct {
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Email  *string `json:"email,omitempty"`
	Age    *int    `json:"age,omitempty"`
	Gender *string `json:"gender,omitempty"`
}

type BookingResponse struct {
	ID              string               `json:"id"`
	BookingNumber   string               `json:"booking_number"`
	UserID          string               `json:"user_id"`
	ProviderID      string               `json:"provider_id"`
	SlotID          string               `json:"slot_id"`
	ClinicID        *string              `json:"clinic_id,omitempty"`
	HospitalID      *string              `json:"hospital_id,omitempty"`
	Patient         PatientResponse      `json:"patient"`
	Date            string               `json:"date"`
	StartTime       string               `json:"start_time"`
	EndTime         string               `json:"end_time"`
	Type            entity.VisitType     `json:"type"`
	Address         *string              `json:"address,omitempty"`
	Symptoms        *string              `json:"symptoms,omitempty"`
	Notes           *string              `json:"notes,omitempty"`
	Price           float64              `json:"price"`
	DiscountCode    *string              `json:"discount_code,omitempty"`
	DiscountAmount  float64              `json:"discount_amount"`
	TotalPrice      float64              `json:"total_price"`
	PaymentMethod   entity.PaymentMethod `json:"payment_method"`
	PaymentStatus   entity.PaymentStatus `json:"payment_status"`
	Status          entity.BookingStatus `json:"status"`
	CancelReason    *string              `json:"cancel_reason,omitempty"`
	CancelledBy     *entity.CancelActor  `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	RescheduledFrom *string              `json:"rescheduled_from,omitempty"`
	RescheduledTo   *string              `json:"rescheduled_to,omitempty"`
	Rating          *int                 `json:"rating,omitempty"`
	Review          *string              `json:"review,omitempty"`
	ReviewedAt      *time.Time           `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID.String(),
		BookingNumber: b.BookingNumber,
		UserID:        b.UserID.String(),
		ProviderID:    b.ProviderID.String(),
		SlotID:        b.SlotID.String(),
		ClinicID:      uuidString(b.ClinicID),
		HospitalID:    uuidString(b.HospitalID),
		Patient: PatientResponse{
			Name:   b.Patient.Name,
			Phone:  b.Patient.Phone,
			Email:  b.Patient.Email,
			Age:    b.Patient.Age,
			Gender: b.Patient.Gender,
		},
		Date:            b.Date.Format("2006-01-02"),
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Type:            b.VisitType,
		Address:         b.Address,
		Symptoms:        b.Symptoms,
		Notes:           b.Notes,
		Price:           b.Price,
		DiscountCode:    b.DiscountCode,
		DiscountAmount:  b.DiscountAmount,
		TotalPrice:      b.TotalPrice,
		PaymentMethod:   b.PaymentMethod,
		PaymentStatus:   b.PaymentStatus,
		Status:          b.Status,
		CancelReason:    b.CancelReason,
		CancelledBy:     b.CancelledBy,
		CancelledAt:     b.CancelledAt,
		CompletedAt:     b.CompletedAt,
		RescheduledFrom: uuidString(b.RescheduledFrom),
		RescheduledTo:   uuidString(b.RescheduledTo),
		Rating:          b.Rating,
		Review:          b.Review,
		ReviewedAt:      b.ReviewedAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
