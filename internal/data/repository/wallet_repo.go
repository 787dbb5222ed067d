package repository

import (
	"context"
	"fmt"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WalletRepository keeps the ledger and the cached balance on users in step.
// Credit and Debit are idempotent per (reference, type): a replay returns
// false and leaves the balance untouched.
type WalletRepository interface {
	Credit(ctx context.Context, tx *entity.WalletTransaction) (bool, error)
	Debit(ctx context.Context, tx *entity.WalletTransaction) (bool, error)
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

type walletRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewWalletRepository(db database.PgxIface, log *zap.Logger) WalletRepository {
	return &walletRepository{
		db:  db,
		log: log.With(zap.String("repository", "wallet")),
	}
}

func (r *walletRepository) Credit(ctx context.Context, wt *entity.WalletTransaction) (bool, error) {
	return r.apply(ctx, wt,
		`UPDATE users SET wallet_balance = wallet_balance + $2, updated_at = NOW() WHERE id = $1`)
}

func (r *walletRepository) Debit(ctx context.Context, wt *entity.WalletTransaction) (bool, error) {
	return r.apply(ctx, wt,
		`UPDATE users SET wallet_balance = wallet_balance - $2, updated_at = NOW()
		 WHERE id = $1 AND wallet_balance >= $2`)
}

func (r *walletRepository) apply(ctx context.Context, wt *entity.WalletTransaction, balanceSQL string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin wallet tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO wallet_transactions (id, user_id, type, amount, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reference_id, type) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insert,
		wt.ID,
		wt.UserID,
		wt.Type,
		wt.Amount,
		wt.Description,
		wt.ReferenceID,
		wt.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to insert wallet transaction",
			zap.Error(err),
			zap.String("user_id", wt.UserID.String()),
			zap.String("reference_id", wt.ReferenceID.String()),
		)
		return false, fmt.Errorf("insert wallet %s: %w", wt.Type, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	tag, err = tx.Exec(ctx, balanceSQL, wt.UserID, wt.Amount)
	if err != nil {
		return false, fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, ErrInsufficientFunds
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit wallet tx: %w", err)
	}
	return true, nil
}

func (r *walletRepository) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	var balance float64
	err := r.db.QueryRow(ctx, `SELECT wallet_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		r.log.Error("Failed to read wallet balance", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("wallet balance %s: %w", userID, err)
	}
	return balance, nil
}

func (r *walletRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, error) {
	query := `
		SELECT id, user_id, type, amount, description, reference_id, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list wallet transactions", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []*entity.WalletTransaction
	for rows.Next() {
		var wt entity.WalletTransaction
		if err := rows.Scan(
			&wt.ID,
			&wt.UserID,
			&wt.Type,
			&wt.Amount,
			&wt.Description,
			&wt.ReferenceID,
			&wt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet transaction: %w", err)
		}
		txs = append(txs, &wt)
	}
	return txs, rows.Err()
}

func (r *walletRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count wallet transactions: %w", err)
	}
	return total, nil
}
