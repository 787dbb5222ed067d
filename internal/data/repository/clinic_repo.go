package repository

import (
	"context"
	"errors"
	"fmt"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ClinicRepository interface {
	Create(ctx context.Context, clinic *entity.Clinic) error
	Update(ctx context.Context, clinic *entity.Clinic) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Clinic, error)
	FindAll(ctx context.Context) ([]*entity.Clinic, error)
}

type clinicRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewClinicRepository(db database.PgxIface, log *zap.Logger) ClinicRepository {
	return &clinicRepository{
		db:  db,
		log: log.With(zap.String("repository", "clinic")),
	}
}

const clinicSelect = `
	SELECT id, name, address, phone, working_hours, default_open_time, default_close_time,
	       slot_duration_minutes, closed_dates, is_active, created_at, updated_at
	FROM clinics
`

func scanClinic(row pgx.Row) (*entity.Clinic, error) {
	var c entity.Clinic
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Address,
		&c.Phone,
		&c.WorkingHours,
		&c.DefaultOpenTime,
		&c.DefaultCloseTime,
		&c.SlotDurationMinutes,
		&c.ClosedDates,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clinicRepository) Create(ctx context.Context, c *entity.Clinic) error {
	query := `
		INSERT INTO clinics (id, name, address, phone, working_hours, default_open_time,
		                     default_close_time, slot_duration_minutes, closed_dates, is_active,
		                     created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Address,
		c.Phone,
		c.WorkingHours,
		c.DefaultOpenTime,
		c.DefaultCloseTime,
		c.SlotDurationMinutes,
		c.ClosedDates,
		c.IsActive,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create clinic", zap.Error(err), zap.String("name", c.Name))
		return fmt.Errorf("create clinic: %w", err)
	}
	return nil
}

func (r *clinicRepository) Update(ctx context.Context, c *entity.Clinic) error {
	query := `
		UPDATE clinics
		SET name = $2, address = $3, phone = $4, working_hours = $5, default_open_time = $6,
		    default_close_time = $7, slot_duration_minutes = $8, closed_dates = $9,
		    is_active = $10, updated_at = $11
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Address,
		c.Phone,
		c.WorkingHours,
		c.DefaultOpenTime,
		c.DefaultCloseTime,
		c.SlotDurationMinutes,
		c.ClosedDates,
		c.IsActive,
		c.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update clinic", zap.Error(err), zap.String("clinic_id", c.ID.String()))
		return fmt.Errorf("update clinic %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *clinicRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Clinic, error) {
	clinic, err := scanClinic(r.db.QueryRow(ctx, clinicSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find clinic by ID", zap.Error(err), zap.String("clinic_id", id.String()))
		return nil, fmt.Errorf("find clinic %s: %w", id, err)
	}
	return clinic, nil
}

func (r *clinicRepository) FindAll(ctx context.Context) ([]*entity.Clinic, error) {
	rows, err := r.db.Query(ctx, clinicSelect+` WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		r.log.Error("Failed to list clinics", zap.Error(err))
		return nil, fmt.Errorf("list clinics: %w", err)
	}
	defer rows.Close()

	var clinics []*entity.Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clinic: %w", err)
		}
		clinics = append(clinics, c)
	}
	return clinics, rows.Err()
}
