package repository

import (
	"context"

	"clinic-booking/internal/data/entity"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

type cachedClinicRepository struct {
	ClinicRepository
	cache *gocache.Cache
}

// NewCachedClinicRepository memoises FindByID, which the working hours
// resolver hits on every slot listing. Writes evict the entry.
func NewCachedClinicRepository(inner ClinicRepository, cache *gocache.Cache) ClinicRepository {
	return &cachedClinicRepository{ClinicRepository: inner, cache: cache}
}

func clinicKey(id uuid.UUID) string {
	return "clinic:" + id.String()
}

func (r *cachedClinicRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Clinic, error) {
	if v, ok := r.cache.Get(clinicKey(id)); ok {
		clinic := *v.(*entity.Clinic)
		return &clinic, nil
	}

	clinic, err := r.ClinicRepository.FindByID(ctx, id)
	if err != nil || clinic == nil {
		return clinic, err
	}

	cached := *clinic
	r.cache.SetDefault(clinicKey(id), &cached)
	return clinic, nil
}

func (r *cachedClinicRepository) Update(ctx context.Context, clinic *entity.Clinic) error {
	r.cache.Delete(clinicKey(clinic.ID))
	return r.ClinicRepository.Update(ctx, clinic)
}
