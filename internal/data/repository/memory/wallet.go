package memory

import (
	"context"
	"fmt"
	"sort"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
)

type walletRepo struct{ s *store }

// seen reports whether the ledger already holds (reference, type). Caller
// holds the lock.
func (r *walletRepo) seen(wt *entity.WalletTransaction) bool {
	for _, t := range r.s.walletTxs {
		if t.ReferenceID == wt.ReferenceID && t.Type == wt.Type {
			return true
		}
	}
	return false
}

func (r *walletRepo) Credit(_ context.Context, wt *entity.WalletTransaction) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.seen(wt) {
		return false, nil
	}
	u, ok := r.s.users[wt.UserID]
	if !ok {
		return false, fmt.Errorf("wallet owner %s not found", wt.UserID)
	}
	u.WalletBalance += wt.Amount
	cp := *wt
	r.s.walletTxs = append(r.s.walletTxs, &cp)
	return true, nil
}

func (r *walletRepo) Debit(_ context.Context, wt *entity.WalletTransaction) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.seen(wt) {
		return false, nil
	}
	u, ok := r.s.users[wt.UserID]
	if !ok {
		return false, fmt.Errorf("wallet owner %s not found", wt.UserID)
	}
	if u.WalletBalance < wt.Amount {
		return false, repository.ErrInsufficientFunds
	}
	u.WalletBalance -= wt.Amount
	cp := *wt
	r.s.walletTxs = append(r.s.walletTxs, &cp)
	return true, nil
}

func (r *walletRepo) Balance(_ context.Context, userID uuid.UUID) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return 0, fmt.Errorf("wallet owner %s not found", userID)
	}
	return u.WalletBalance, nil
}

func (r *walletRepo) byUser(userID uuid.UUID) []*entity.WalletTransaction {
	var out []*entity.WalletTransaction
	for _, t := range r.s.walletTxs {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *walletRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(r.byUser(userID), limit, offset), nil
}

func (r *walletRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.byUser(userID))), nil
}

type discountRepo struct{ s *store }

func (r *discountRepo) Create(_ context.Context, d *entity.Discount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.discounts[d.Code]; ok {
		return repository.ErrDuplicate
	}
	cp := *d
	r.s.discounts[d.Code] = &cp
	return nil
}

func (r *discountRepo) FindByCode(_ context.Context, code string) (*entity.Discount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.discounts[code]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *discountRepo) Redeem(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.discounts {
		if d.ID != id {
			continue
		}
		if d.MaxUses != nil && d.UsedCount >= *d.MaxUses {
			return repository.ErrStaleState
		}
		d.UsedCount++
		return nil
	}
	return repository.ErrStaleState
}

type activityRepo struct{ s *store }

func (r *activityRepo) Create(_ context.Context, a *entity.ActivityLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *a
	r.s.activity = append(r.s.activity, &cp)
	return nil
}

func (r *activityRepo) FindAll(_ context.Context, limit, offset int) ([]*entity.ActivityLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entity.ActivityLog, 0, len(r.s.activity))
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		cp := *r.s.activity[i]
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (r *activityRepo) CountAll(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.activity)), nil
}
