package memory

import (
	"context"
	"sort"
	"strings"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"

	"github.com/google/uuid"
)

type providerRepo struct{ s *store }

func (r *providerRepo) Create(_ context.Context, p *entity.Provider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.providers[p.ID] = &cp
	return nil
}

func (r *providerRepo) Update(_ context.Context, p *entity.Provider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.providers[p.ID]
	if !ok {
		return repository.ErrStaleState
	}
	cp := *p
	cp.Rating, cp.ReviewCount, cp.TotalPatients = cur.Rating, cur.ReviewCount, cur.TotalPatients
	r.s.providers[p.ID] = &cp
	return nil
}

func (r *providerRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Provider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.providers[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *providerRepo) matching(f repository.ProviderFilter) []*entity.Provider {
	var out []*entity.Provider
	for _, p := range r.s.providers {
		if !p.IsActive {
			continue
		}
		if f.ClinicID != nil && (p.ClinicID == nil || *p.ClinicID != *f.ClinicID) {
			continue
		}
		if f.HospitalID != nil && (p.HospitalID == nil || *p.HospitalID != *f.HospitalID) {
			continue
		}
		if f.Specialty != "" && !strings.Contains(strings.ToLower(p.Specialty), strings.ToLower(f.Specialty)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (r *providerRepo) List(_ context.Context, filter repository.ProviderFilter) ([]*entity.Provider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.matching(filter)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *providerRepo) Count(_ context.Context, filter repository.ProviderFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *providerRepo) IncrementPatients(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.providers[id]; ok {
		p.TotalPatients++
	}
	return nil
}

func (r *providerRepo) ApplyRating(_ context.Context, providerID, bookingID uuid.UUID, fn repository.RatingFunc) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok {
		return false, repository.ErrStaleState
	}
	if b.RatingApplied {
		return false, nil
	}
	p, ok := r.s.providers[providerID]
	if !ok {
		return false, repository.ErrStaleState
	}
	p.Rating, p.ReviewCount = fn(p.Rating, p.ReviewCount)
	b.RatingApplied = true
	return true, nil
}

type clinicRepo struct{ s *store }

func (r *clinicRepo) Create(_ context.Context, c *entity.Clinic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.clinics[c.ID] = &cp
	return nil
}

func (r *clinicRepo) Update(_ context.Context, c *entity.Clinic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clinics[c.ID]; !ok {
		return repository.ErrStaleState
	}
	cp := *c
	r.s.clinics[c.ID] = &cp
	return nil
}

func (r *clinicRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Clinic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clinics[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *clinicRepo) FindAll(_ context.Context) ([]*entity.Clinic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Clinic
	for _, c := range r.s.clinics {
		if c.IsActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
