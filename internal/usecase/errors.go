package usecase

import (
	"errors"
	"fmt"

	"clinic-booking/pkg/utils"
)

// Domain errors. Call sites wrap them with context, handlers match them with
// errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrIllegalTransition   = errors.New("illegal transition")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
)

func validationError(errs map[string]string) error {
	return fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
}
