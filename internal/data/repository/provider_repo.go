package repository

import (
	"context"
	"errors"
	"fmt"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RatingFunc folds one new rating into the current aggregate.
type RatingFunc func(rating float64, count int) (float64, int)

type ProviderRepository interface {
	Create(ctx context.Context, provider *entity.Provider) error
	Update(ctx context.Context, provider *entity.Provider) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Provider, error)
	List(ctx context.Context, filter ProviderFilter) ([]*entity.Provider, error)
	Count(ctx context.Context, filter ProviderFilter) (int64, error)

	IncrementPatients(ctx context.Context, id uuid.UUID) error
	// ApplyRating folds the booking's rating into the provider aggregate at
	// most once. The provider row is locked for the duration, so concurrent
	// reviews of one provider are applied one after another. Returns false
	// when the booking's rating had already been applied.
	ApplyRating(ctx context.Context, providerID, bookingID uuid.UUID, fn RatingFunc) (bool, error)
}

var providerColumns = []string{
	"id", "name", "specialty", "clinic_id", "hospital_id", "consultation_fee", "online_fee",
	"home_visit_fee", "rating", "review_count", "reception_mode", "reception_capacity",
	"total_patients", "is_active", "created_at", "updated_at",
}

type providerRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewProviderRepository(db database.PgxIface, log *zap.Logger) ProviderRepository {
	return &providerRepository{
		db:  db,
		log: log.With(zap.String("repository", "provider")),
	}
}

func scanProvider(row pgx.Row) (*entity.Provider, error) {
	var p entity.Provider
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.ClinicID,
		&p.HospitalID,
		&p.ConsultationFee,
		&p.OnlineFee,
		&p.HomeVisitFee,
		&p.Rating,
		&p.ReviewCount,
		&p.ReceptionMode,
		&p.ReceptionCapacity,
		&p.TotalPatients,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerRepository) Create(ctx context.Context, p *entity.Provider) error {
	query, args, err := psql.Insert("providers").
		Columns(providerColumns...).
		Values(
			p.ID, p.Name, p.Specialty, p.ClinicID, p.HospitalID, p.ConsultationFee, p.OnlineFee,
			p.HomeVisitFee, p.Rating, p.ReviewCount, p.ReceptionMode, p.ReceptionCapacity,
			p.TotalPatients, p.IsActive, p.CreatedAt, p.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert provider: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		r.log.Error("Failed to create provider", zap.Error(err), zap.String("name", p.Name))
		return fmt.Errorf("create provider: %w", err)
	}
	return nil
}

// Update writes the editable profile fields. The rating aggregate and patient
// counter are owned by ApplyRating and IncrementPatients.
func (r *providerRepository) Update(ctx context.Context, p *entity.Provider) error {
	query := `
		UPDATE providers
		SET name = $2, specialty = $3, clinic_id = $4, hospital_id = $5,
		    consultation_fee = $6, online_fee = $7, home_visit_fee = $8,
		    reception_mode = $9, reception_capacity = $10, is_active = $11,
		    updated_at = $12
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Specialty,
		p.ClinicID,
		p.HospitalID,
		p.ConsultationFee,
		p.OnlineFee,
		p.HomeVisitFee,
		p.ReceptionMode,
		p.ReceptionCapacity,
		p.IsActive,
		p.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update provider", zap.Error(err), zap.String("provider_id", p.ID.String()))
		return fmt.Errorf("update provider %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *providerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Provider, error) {
	query, args, err := psql.Select(providerColumns...).
		From("providers").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select provider: %w", err)
	}

	provider, err := scanProvider(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find provider by ID", zap.Error(err), zap.String("provider_id", id.String()))
		return nil, fmt.Errorf("find provider %s: %w", id, err)
	}
	return provider, nil
}

func providerWhere(b squirrel.SelectBuilder, f ProviderFilter) squirrel.SelectBuilder {
	b = b.Where(squirrel.Eq{"is_active": true})
	if f.ClinicID != nil {
		b = b.Where(squirrel.Eq{"clinic_id": *f.ClinicID})
	}
	if f.HospitalID != nil {
		b = b.Where(squirrel.Eq{"hospital_id": *f.HospitalID})
	}
	if f.Specialty != "" {
		b = b.Where(squirrel.ILike{"specialty": "%" + f.Specialty + "%"})
	}
	return b
}

func (r *providerRepository) List(ctx context.Context, filter ProviderFilter) ([]*entity.Provider, error) {
	builder := providerWhere(psql.Select(providerColumns...).From("providers"), filter).
		OrderBy("rating DESC", "name ASC")
	query, args, err := applyPage(builder, filter.Limit, filter.Offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list providers: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list providers", zap.Error(err))
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []*entity.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (r *providerRepository) Count(ctx context.Context, filter ProviderFilter) (int64, error) {
	query, args, err := providerWhere(psql.Select("COUNT(*)").From("providers"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count providers: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count providers: %w", err)
	}
	return total, nil
}

func (r *providerRepository) IncrementPatients(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE providers SET total_patients = total_patients + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to increment patients", zap.Error(err), zap.String("provider_id", id.String()))
		return fmt.Errorf("increment patients %s: %w", id, err)
	}
	return nil
}

func (r *providerRepository) ApplyRating(ctx context.Context, providerID, bookingID uuid.UUID, fn RatingFunc) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin rating tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var applied bool
	err = tx.QueryRow(ctx,
		`SELECT rating_applied FROM bookings WHERE id = $1 FOR UPDATE`, bookingID).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("lock booking %s: %w", bookingID, err)
	}
	if applied {
		return false, tx.Commit(ctx)
	}

	var rating float64
	var count int
	err = tx.QueryRow(ctx,
		`SELECT rating, review_count FROM providers WHERE id = $1 FOR UPDATE`, providerID).Scan(&rating, &count)
	if err != nil {
		return false, fmt.Errorf("lock provider %s: %w", providerID, err)
	}

	rating, count = fn(rating, count)

	if _, err := tx.Exec(ctx,
		`UPDATE providers SET rating = $2, review_count = $3, updated_at = NOW() WHERE id = $1`,
		providerID, rating, count); err != nil {
		return false, fmt.Errorf("update provider rating: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE bookings SET rating_applied = TRUE WHERE id = $1`, bookingID); err != nil {
		return false, fmt.Errorf("mark rating applied: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit rating", zap.Error(err), zap.String("provider_id", providerID.String()))
		return false, fmt.Errorf("commit rating tx: %w", err)
	}
	return true, nil
}
