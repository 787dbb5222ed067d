package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/database"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SessionRepository stores bearer tokens. Expiry is left to the caller's
// clock; the store only knows about revocation.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	// FindActive returns the unrevoked session for token, or nil.
	FindActive(ctx context.Context, token uuid.UUID) (*entity.Session, error)
	// Revoke ends one session. Returns ErrStaleState if it was already
	// revoked or never existed.
	Revoke(ctx context.Context, token uuid.UUID, at time.Time) error
	// RevokeForUser ends every open session of a user and reports how many.
	RevokeForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

var sessionColumns = []string{
	"id", "user_id", "token", "user_agent", "ip_address", "expires_at", "revoked_at", "created_at",
}

type sessionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSessionRepository(db database.PgxIface, log *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log.With(zap.String("repository", "session")),
	}
}

func scanSession(row pgx.Row) (*entity.Session, error) {
	var s entity.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.UserAgent,
		&s.IPAddress,
		&s.ExpiresAt,
		&s.RevokedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	query, args, err := psql.Insert("sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.Token,
			session.UserAgent,
			session.IPAddress,
			session.ExpiresAt,
			session.RevokedAt,
			session.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		r.log.Error("Failed to create session", zap.Error(err), zap.String("user_id", session.UserID.String()))
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) FindActive(ctx context.Context, token uuid.UUID) (*entity.Session, error) {
	query, args, err := psql.Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"token": token, "revoked_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find session: %w", err)
	}

	session, err := scanSession(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find session", zap.Error(err))
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, token uuid.UUID, at time.Time) error {
	query, args, err := psql.Update("sessions").
		Set("revoked_at", at).
		Where(squirrel.Eq{"token": token, "revoked_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to revoke session", zap.Error(err))
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *sessionRepository) RevokeForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	query, args, err := psql.Update("sessions").
		Set("revoked_at", at).
		Where(squirrel.Eq{"user_id": userID, "revoked_at": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke user sessions: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to revoke user sessions", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
