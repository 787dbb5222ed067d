package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]*entity.Booking, error)
	Count(ctx context.Context, filter BookingFilter) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Business queries
	CountActiveByProviderDate(ctx context.Context, providerID uuid.UUID, date time.Time) (int, error)
	// Transition applies patch only if the booking is still in from.
	Transition(ctx context.Context, id uuid.UUID, from entity.BookingStatus, patch entity.BookingPatch) (*entity.Booking, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus) error
	// AttachReview stores a rating on a completed, not yet reviewed booking.
	AttachReview(ctx context.Context, id uuid.UUID, rating int, review *string, at time.Time) (*entity.Booking, error)
	FindPendingRefunds(ctx context.Context, limit int) ([]*entity.Booking, error)
	FindUnappliedRatings(ctx context.Context, limit int) ([]*entity.Booking, error)
	// FindUnsettledSlots returns bookings in a final status whose slot is
	// still booked to them.
	FindUnsettledSlots(ctx context.Context, limit int) ([]*entity.Booking, error)
}

var bookingColumns = []string{
	"id", "booking_number", "user_id", "provider_id", "slot_id", "clinic_id", "hospital_id",
	"patient_name", "patient_phone", "patient_email", "patient_age", "patient_gender",
	"booking_date", "start_time", "end_time", "visit_type", "address", "symptoms", "notes",
	"price", "discount_code", "discount_amount", "total_price", "payment_method", "payment_status",
	"status", "cancel_reason", "cancelled_by", "cancelled_at", "completed_at",
	"rescheduled_from", "rescheduled_to", "rating", "review", "reviewed_at", "rating_applied",
	"created_at", "updated_at",
}

// inactive bookings do not count against a provider's daily capacity
var inactiveBookingStatuses = []string{
	string(entity.BookingStatusCancelled),
	string(entity.BookingStatusNoShow),
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.BookingNumber,
		&b.UserID,
		&b.ProviderID,
		&b.SlotID,
		&b.ClinicID,
		&b.HospitalID,
		&b.Patient.Name,
		&b.Patient.Phone,
		&b.Patient.Email,
		&b.Patient.Age,
		&b.Patient.Gender,
		&b.Date,
		&b.StartTime,
		&b.EndTime,
		&b.VisitType,
		&b.Address,
		&b.Symptoms,
		&b.Notes,
		&b.Price,
		&b.DiscountCode,
		&b.DiscountAmount,
		&b.TotalPrice,
		&b.PaymentMethod,
		&b.PaymentStatus,
		&b.Status,
		&b.CancelReason,
		&b.CancelledBy,
		&b.CancelledAt,
		&b.CompletedAt,
		&b.RescheduledFrom,
		&b.RescheduledTo,
		&b.Rating,
		&b.Review,
		&b.ReviewedAt,
		&b.RatingApplied,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *entity.Booking) error {
	query, args, err := psql.Insert("bookings").
		Columns(bookingColumns...).
		Values(
			b.ID, b.BookingNumber, b.UserID, b.ProviderID, b.SlotID, b.ClinicID, b.HospitalID,
			b.Patient.Name, b.Patient.Phone, b.Patient.Email, b.Patient.Age, b.Patient.Gender,
			b.Date, b.StartTime, b.EndTime, b.VisitType, b.Address, b.Symptoms, b.Notes,
			b.Price, b.DiscountCode, b.DiscountAmount, b.TotalPrice, b.PaymentMethod, b.PaymentStatus,
			b.Status, b.CancelReason, b.CancelledBy, b.CancelledAt, b.CompletedAt,
			b.RescheduledFrom, b.RescheduledTo, b.Rating, b.Review, b.ReviewedAt, b.RatingApplied,
			b.CreatedAt, b.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_number", b.BookingNumber),
			zap.String("user_id", b.UserID.String()),
		)
		return fmt.Errorf("create booking %s: %w", b.BookingNumber, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select booking: %w", err)
	}

	booking, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id, err)
	}

	return booking, nil
}

func bookingWhere(b squirrel.SelectBuilder, f BookingFilter) squirrel.SelectBuilder {
	if f.UserID != nil {
		b = b.Where(squirrel.Eq{"user_id": *f.UserID})
	}
	if f.ProviderID != nil {
		b = b.Where(squirrel.Eq{"provider_id": *f.ProviderID})
	}
	if f.Status != nil {
		b = b.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.DateFrom != nil {
		b = b.Where(squirrel.GtOrEq{"booking_date": *f.DateFrom})
	}
	if f.DateTo != nil {
		b = b.Where(squirrel.LtOrEq{"booking_date": *f.DateTo})
	}
	return b
}

func (r *bookingRepository) List(ctx context.Context, filter BookingFilter) ([]*entity.Booking, error) {
	builder := bookingWhere(psql.Select(bookingColumns...).From("bookings"), filter).
		OrderBy("created_at DESC")
	query, args, err := applyPage(builder, filter.Limit, filter.Offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings: %w", err)
	}

	return r.query(ctx, query, args...)
}

func (r *bookingRepository) query(ctx context.Context, query string, args ...any) ([]*entity.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query bookings", zap.Error(err))
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) Count(ctx context.Context, filter BookingFilter) (int64, error) {
	query, args, err := bookingWhere(psql.Select("COUNT(*)").From("bookings"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count bookings: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err))
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return total, nil
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete booking", zap.Error(err), zap.String("booking_id", id.String()))
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *bookingRepository) CountActiveByProviderDate(ctx context.Context, providerID uuid.UUID, date time.Time) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("bookings").
		Where(squirrel.Eq{"provider_id": providerID, "booking_date": date}).
		Where(squirrel.NotEq{"status": inactiveBookingStatuses}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count active bookings: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		r.log.Error("Failed to count active bookings",
			zap.Error(err),
			zap.String("provider_id", providerID.String()),
		)
		return 0, fmt.Errorf("count active bookings: %w", err)
	}
	return total, nil
}

func (r *bookingRepository) Transition(ctx context.Context, id uuid.UUID, from entity.BookingStatus, patch entity.BookingPatch) (*entity.Booking, error) {
	builder := psql.Update("bookings").
		Set("status", patch.Status).
		Set("updated_at", patch.UpdatedAt)
	if patch.PaymentStatus != nil {
		builder = builder.Set("payment_status", *patch.PaymentStatus)
	}
	if patch.CancelReason != nil {
		builder = builder.Set("cancel_reason", *patch.CancelReason)
	}
	if patch.CancelledBy != nil {
		builder = builder.Set("cancelled_by", *patch.CancelledBy)
	}
	if patch.CancelledAt != nil {
		builder = builder.Set("cancelled_at", *patch.CancelledAt)
	}
	if patch.CompletedAt != nil {
		builder = builder.Set("completed_at", *patch.CompletedAt)
	}
	if patch.RescheduledTo != nil {
		builder = builder.Set("rescheduled_to", *patch.RescheduledTo)
	}

	query, args, err := builder.
		Where(squirrel.Eq{"id": id, "status": from}).
		Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build booking transition: %w", err)
	}

	booking, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleState
	}
	if err != nil {
		r.log.Error("Failed to transition booking",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(patch.Status)),
		)
		return nil, fmt.Errorf("transition booking %s: %w", id, err)
	}

	return booking, nil
}

func (r *bookingRepository) SetPaymentStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus) error {
	query := `
		UPDATE bookings
		SET payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, from, to)
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return fmt.Errorf("update payment status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *bookingRepository) AttachReview(ctx context.Context, id uuid.UUID, rating int, review *string, at time.Time) (*entity.Booking, error) {
	query, args, err := psql.Update("bookings").
		Set("rating", rating).
		Set("review", review).
		Set("reviewed_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "status": entity.BookingStatusCompleted, "rating": nil}).
		Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attach review: %w", err)
	}

	booking, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleState
	}
	if err != nil {
		r.log.Error("Failed to attach review", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("attach review %s: %w", id, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindPendingRefunds(ctx context.Context, limit int) ([]*entity.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{
			"status":         entity.BookingStatusCancelled,
			"payment_method": entity.PaymentWallet,
			"payment_status": entity.PaymentStatusPaid,
			"rescheduled_to": nil,
		}).
		OrderBy("cancelled_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending refunds: %w", err)
	}

	return r.query(ctx, query, args...)
}

func (r *bookingRepository) FindUnappliedRatings(ctx context.Context, limit int) ([]*entity.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.NotEq{"rating": nil}).
		Where(squirrel.Eq{"rating_applied": false}).
		OrderBy("reviewed_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unapplied ratings: %w", err)
	}

	return r.query(ctx, query, args...)
}

func (r *bookingRepository) FindUnsettledSlots(ctx context.Context, limit int) ([]*entity.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"status": []entity.BookingStatus{
			entity.BookingStatusCancelled,
			entity.BookingStatusCompleted,
			entity.BookingStatusNoShow,
		}}).
		Where("EXISTS (SELECT 1 FROM availability_slots s WHERE s.id = bookings.slot_id AND s.booking_id = bookings.id AND s.status = ?)", entity.SlotBooked).
		OrderBy("updated_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unsettled slots: %w", err)
	}

	return r.query(ctx, query, args...)
}
