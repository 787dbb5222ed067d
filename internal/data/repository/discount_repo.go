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

type DiscountRepository interface {
	Create(ctx context.Context, discount *entity.Discount) error
	FindByCode(ctx context.Context, code string) (*entity.Discount, error)
	// Redeem counts one use, failing with ErrStaleState once max_uses is hit.
	Redeem(ctx context.Context, id uuid.UUID) error
}

type discountRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewDiscountRepository(db database.PgxIface, log *zap.Logger) DiscountRepository {
	return &discountRepository{
		db:  db,
		log: log.With(zap.String("repository", "discount")),
	}
}

func (r *discountRepository) Create(ctx context.Context, d *entity.Discount) error {
	query := `
		INSERT INTO discounts (id, code, percent, amount, max_uses, used_count,
		                       valid_from, valid_to, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		d.ID,
		d.Code,
		d.Percent,
		d.Amount,
		d.MaxUses,
		d.UsedCount,
		d.ValidFrom,
		d.ValidTo,
		d.IsActive,
		d.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		r.log.Error("Failed to create discount", zap.Error(err), zap.String("code", d.Code))
		return fmt.Errorf("create discount %s: %w", d.Code, err)
	}
	return nil
}

func (r *discountRepository) FindByCode(ctx context.Context, code string) (*entity.Discount, error) {
	query := `
		SELECT id, code, percent, amount, max_uses, used_count,
		       valid_from, valid_to, is_active, created_at
		FROM discounts
		WHERE code = $1
	`

	var d entity.Discount
	err := r.db.QueryRow(ctx, query, code).Scan(
		&d.ID,
		&d.Code,
		&d.Percent,
		&d.Amount,
		&d.MaxUses,
		&d.UsedCount,
		&d.ValidFrom,
		&d.ValidTo,
		&d.IsActive,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find discount", zap.Error(err), zap.String("code", code))
		return nil, fmt.Errorf("find discount %s: %w", code, err)
	}
	return &d, nil
}

func (r *discountRepository) Redeem(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE discounts
		SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to redeem discount", zap.Error(err), zap.String("discount_id", id.String()))
		return fmt.Errorf("redeem discount %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}
