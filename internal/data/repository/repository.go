package repository

import (
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type Repository struct {
	User     UserRepository
	Session  SessionRepository
	Clinic   ClinicRepository
	Provider ProviderRepository
	Slot     SlotStore
	Booking  BookingRepository
	Wallet   WalletRepository
	Discount DiscountRepository
	Activity ActivityRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:     NewUserRepository(db, log),
		Session:  NewSessionRepository(db, log),
		Clinic:   NewClinicRepository(db, log),
		Provider: NewProviderRepository(db, log),
		Slot:     NewSlotStore(db, log),
		Booking:  NewBookingRepository(db, log),
		Wallet:   NewWalletRepository(db, log),
		Discount: NewDiscountRepository(db, log),
		Activity: NewActivityRepository(db, log),
	}
}

type SlotFilter struct {
	ProviderID *uuid.UUID
	ClinicID   *uuid.UUID
	HospitalID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
	Status     *entity.SlotStatus
	VisitType  *entity.VisitType
	Limit      int
	Offset     int
}

type BookingFilter struct {
	UserID     *uuid.UUID
	ProviderID *uuid.UUID
	Status     *entity.BookingStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

type ProviderFilter struct {
	ClinicID   *uuid.UUID
	HospitalID *uuid.UUID
	Specialty  string
	Limit      int
	Offset     int
}

func applyPage(b squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	if offset > 0 {
		b = b.Offset(uint64(offset))
	}
	return b
}
