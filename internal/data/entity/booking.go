package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusNoShow
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentWallet PaymentMethod = "wallet"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type CancelActor string

const (
	CancelByUser     CancelActor = "user"
	CancelByProvider CancelActor = "provider"
	CancelByAdmin    CancelActor = "admin"
	CancelBySystem   CancelActor = "system"
)

// PatientSnapshot is copied onto the booking at creation and never re-read
// from the user profile.
type PatientSnapshot struct {
	Name   string  `db:"patient_name"`
	Phone  string  `db:"patient_phone"`
	Email  *string `db:"patient_email"`
	Age    *int    `db:"patient_age"`
	Gender *string `db:"patient_gender"`
}

type Booking struct {
	BaseNoDelete
	BookingNumber   string          `db:"booking_number"`
	UserID          uuid.UUID       `db:"user_id"`
	ProviderID      uuid.UUID       `db:"provider_id"`
	SlotID          uuid.UUID       `db:"slot_id"`
	ClinicID        *uuid.UUID      `db:"clinic_id"`
	HospitalID      *uuid.UUID      `db:"hospital_id"`
	Patient         PatientSnapshot `db:"-"`
	Date            time.Time       `db:"booking_date"`
	StartTime       string          `db:"start_time"`
	EndTime         string          `db:"end_time"`
	VisitType       VisitType       `db:"visit_type"`
	Address         *string         `db:"address"`
	Symptoms        *string         `db:"symptoms"`
	Notes           *string         `db:"notes"`
	Price           float64         `db:"price"`
	DiscountCode    *string         `db:"discount_code"`
	DiscountAmount  float64         `db:"discount_amount"`
	TotalPrice      float64         `db:"total_price"`
	PaymentMethod   PaymentMethod   `db:"payment_method"`
	PaymentStatus   PaymentStatus   `db:"payment_status"`
	Status          BookingStatus   `db:"status"`
	CancelReason    *string         `db:"cancel_reason"`
	CancelledBy     *CancelActor    `db:"cancelled_by"`
	CancelledAt     *time.Time      `db:"cancelled_at"`
	CompletedAt     *time.Time      `db:"completed_at"`
	RescheduledFrom *uuid.UUID      `db:"rescheduled_from"`
	RescheduledTo   *uuid.UUID      `db:"rescheduled_to"`
	Rating          *int            `db:"rating"`
	Review          *string         `db:"review"`
	ReviewedAt      *time.Time      `db:"reviewed_at"`
	RatingApplied   bool            `db:"rating_applied"`
}

// NeedsRefund reports a cancelled wallet booking whose money has not been
// returned yet. A rescheduled original hands its payment to the replacement
// and is never refunded itself.
func (b *Booking) NeedsRefund() bool {
	return b.Status == BookingStatusCancelled &&
		b.PaymentMethod == PaymentWallet &&
		b.PaymentStatus == PaymentStatusPaid &&
		b.RescheduledTo == nil
}

// BookingPatch carries the fields a status transition stamps alongside the
// new status. Nil fields are left untouched.
type BookingPatch struct {
	Status        BookingStatus
	PaymentStatus *PaymentStatus
	CancelReason  *string
	CancelledBy   *CancelActor
	CancelledAt   *time.Time
	CompletedAt   *time.Time
	RescheduledTo *uuid.UUID
	UpdatedAt     time.Time
}
