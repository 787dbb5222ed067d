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

// SlotStore persists availability slots. CompareAndSwapStatus is the only way
// a slot changes status, so two callers racing for the same slot can never
// both win.
type SlotStore interface {
	Create(ctx context.Context, slot *entity.AvailabilitySlot) error
	CreateBatch(ctx context.Context, slots []*entity.AvailabilitySlot) (int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AvailabilitySlot, error)
	FindByKey(ctx context.Context, providerID uuid.UUID, date time.Time, startTime string) (*entity.AvailabilitySlot, error)
	List(ctx context.Context, filter SlotFilter) ([]*entity.AvailabilitySlot, error)
	Count(ctx context.Context, filter SlotFilter) (int64, error)
	// CompareAndSwapStatus moves the slot from one status to another only if
	// it is currently in from. Moving to available clears the booking link;
	// a non-nil bookingID is recorded on the slot. Returns ErrStaleState when
	// the slot was not in from.
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to entity.SlotStatus, bookingID *uuid.UUID) (*entity.AvailabilitySlot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var slotColumns = []string{
	"id", "provider_id", "clinic_id", "hospital_id", "slot_date", "start_time", "end_time",
	"duration_minutes", "visit_type", "status", "price", "booking_id", "notes", "created_at", "updated_at",
}

type slotStore struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSlotStore(db database.PgxIface, log *zap.Logger) SlotStore {
	return &slotStore{
		db:  db,
		log: log.With(zap.String("repository", "slot")),
	}
}

func scanSlot(row pgx.Row) (*entity.AvailabilitySlot, error) {
	var s entity.AvailabilitySlot
	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.ClinicID,
		&s.HospitalID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.DurationMinutes,
		&s.VisitType,
		&s.Status,
		&s.Price,
		&s.BookingID,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *slotStore) Create(ctx context.Context, slot *entity.AvailabilitySlot) error {
	query, args, err := psql.Insert("availability_slots").
		Columns(slotColumns...).
		Values(slotValues(slot)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert slot: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		r.log.Error("Failed to create slot",
			zap.Error(err),
			zap.String("provider_id", slot.ProviderID.String()),
			zap.Time("date", slot.Date),
			zap.String("start_time", slot.StartTime),
		)
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

func slotValues(s *entity.AvailabilitySlot) []any {
	return []any{
		s.ID, s.ProviderID, s.ClinicID, s.HospitalID, s.Date, s.StartTime, s.EndTime,
		s.DurationMinutes, s.VisitType, s.Status, s.Price, s.BookingID, s.Notes, s.CreatedAt, s.UpdatedAt,
	}
}

// CreateBatch inserts slots, silently skipping any whose (provider, date,
// start) already exists. Returns how many rows were actually written.
func (r *slotStore) CreateBatch(ctx context.Context, slots []*entity.AvailabilitySlot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	builder := psql.Insert("availability_slots").Columns(slotColumns...)
	for _, s := range slots {
		builder = builder.Values(slotValues(s)...)
	}
	query, args, err := builder.
		Suffix("ON CONFLICT (provider_id, slot_date, start_time) WHERE status <> 'blocked' DO NOTHING").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build batch insert slots: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to create slot batch", zap.Error(err), zap.Int("count", len(slots)))
		return 0, fmt.Errorf("create slot batch: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *slotStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.AvailabilitySlot, error) {
	query, args, err := psql.Select(slotColumns...).
		From("availability_slots").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select slot: %w", err)
	}

	slot, err := scanSlot(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find slot by ID", zap.Error(err), zap.String("slot_id", id.String()))
		return nil, fmt.Errorf("find slot %s: %w", id, err)
	}

	return slot, nil
}

func (r *slotStore) FindByKey(ctx context.Context, providerID uuid.UUID, date time.Time, startTime string) (*entity.AvailabilitySlot, error) {
	query, args, err := psql.Select(slotColumns...).
		From("availability_slots").
		Where(squirrel.Eq{"provider_id": providerID, "slot_date": date, "start_time": startTime}).
		Where(squirrel.NotEq{"status": entity.SlotBlocked}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select slot by key: %w", err)
	}

	slot, err := scanSlot(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find slot by key",
			zap.Error(err),
			zap.String("provider_id", providerID.String()),
			zap.String("start_time", startTime),
		)
		return nil, fmt.Errorf("find slot by key: %w", err)
	}

	return slot, nil
}

func slotWhere(b squirrel.SelectBuilder, f SlotFilter) squirrel.SelectBuilder {
	if f.ProviderID != nil {
		b = b.Where(squirrel.Eq{"provider_id": *f.ProviderID})
	}
	if f.ClinicID != nil {
		b = b.Where(squirrel.Eq{"clinic_id": *f.ClinicID})
	}
	if f.HospitalID != nil {
		b = b.Where(squirrel.Eq{"hospital_id": *f.HospitalID})
	}
	if f.DateFrom != nil {
		b = b.Where(squirrel.GtOrEq{"slot_date": *f.DateFrom})
	}
	if f.DateTo != nil {
		b = b.Where(squirrel.LtOrEq{"slot_date": *f.DateTo})
	}
	if f.Status != nil {
		b = b.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.VisitType != nil {
		b = b.Where(squirrel.Eq{"visit_type": *f.VisitType})
	}
	return b
}

func (r *slotStore) List(ctx context.Context, filter SlotFilter) ([]*entity.AvailabilitySlot, error) {
	builder := slotWhere(psql.Select(slotColumns...).From("availability_slots"), filter).
		OrderBy("slot_date ASC", "start_time ASC")
	query, args, err := applyPage(builder, filter.Limit, filter.Offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list slots: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list slots", zap.Error(err))
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []*entity.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

func (r *slotStore) Count(ctx context.Context, filter SlotFilter) (int64, error) {
	query, args, err := slotWhere(psql.Select("COUNT(*)").From("availability_slots"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count slots: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		r.log.Error("Failed to count slots", zap.Error(err))
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return total, nil
}

func (r *slotStore) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to entity.SlotStatus, bookingID *uuid.UUID) (*entity.AvailabilitySlot, error) {
	builder := psql.Update("availability_slots").
		Set("status", to).
		Set("updated_at", time.Now().UTC())
	switch {
	case to == entity.SlotAvailable:
		builder = builder.Set("booking_id", nil)
	case bookingID != nil:
		builder = builder.Set("booking_id", *bookingID)
	}

	query, args, err := builder.
		Where(squirrel.Eq{"id": id, "status": from}).
		Suffix("RETURNING " + strings.Join(slotColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slot status swap: %w", err)
	}

	slot, err := scanSlot(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleState
	}
	if database.IsUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		r.log.Error("Failed to swap slot status",
			zap.Error(err),
			zap.String("slot_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return nil, fmt.Errorf("swap slot %s status: %w", id, err)
	}

	return slot, nil
}

// Delete removes a slot that is not holding a booking. A slot some booking
// row still references is refused by the foreign key and reported as
// ErrStaleState.
func (r *slotStore) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := psql.Delete("availability_slots").
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.NotEq{"status": entity.SlotBooked}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete slot: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if database.IsForeignKeyViolation(err) {
		return ErrStaleState
	}
	if err != nil {
		r.log.Error("Failed to delete slot", zap.Error(err), zap.String("slot_id", id.String()))
		return fmt.Errorf("delete slot %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}
