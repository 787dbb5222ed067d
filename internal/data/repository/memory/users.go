package memory

import (
	"context"
	"sort"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
)

type userRepo struct{ s *store }

func (r *userRepo) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email && u.DeletedAt == nil {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *userRepo) FindAll(_ context.Context, limit, offset int) ([]*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.User
	for _, u := range r.s.users {
		if u.DeletedAt == nil {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *userRepo) CountAll(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range r.s.users {
		if u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *userRepo) Update(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[user.ID]
	if !ok || cur.DeletedAt != nil {
		return repository.ErrStaleState
	}
	for id, u := range r.s.users {
		if id != user.ID && u.Email == user.Email && u.DeletedAt == nil {
			return repository.ErrDuplicate
		}
	}
	balance := cur.WalletBalance
	cp := *user
	cp.WalletBalance = balance
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrStaleState
	}
	now := time.Now().UTC()
	u.DeletedAt = &now
	return nil
}

type sessionRepo struct{ s *store }

func (r *sessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.Token] = &cp
	return nil
}

func (r *sessionRepo) FindActive(_ context.Context, token uuid.UUID) (*entity.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok || sess.RevokedAt != nil {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *sessionRepo) Revoke(_ context.Context, token uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok || sess.RevokedAt != nil {
		return repository.ErrStaleState
	}
	sess.RevokedAt = &at
	return nil
}

func (r *sessionRepo) RevokeForUser(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			revokedAt := at
			sess.RevokedAt = &revokedAt
			n++
		}
	}
	return n, nil
}
