package usecase

import (
	"fmt"
	"time"

	"clinic-booking/internal/dto/request"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
)

func parseID(kind, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s ID %q", ErrValidation, kind, value)
	}
	return id, nil
}

func parseOptionalID(kind, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseID(kind, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseOptionalIDPtr(kind string, value *string) (*uuid.UUID, error) {
	if value == nil {
		return nil, nil
	}
	return parseOptionalID(kind, *value)
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := utils.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrValidation, field)
	}
	return &d, nil
}

// normalizePage fills in the defaults the handlers would otherwise apply.
func normalizePage(p *request.PaginatedRequest) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
}
