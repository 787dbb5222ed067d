package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

// writeServiceError maps domain errors onto the JSON envelope. Anything that
// is not a known domain error is logged and reported as 500.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	fields := []zap.Field{zap.Error(err), zap.String("operation", operation)}

	switch {
	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, err.Error())

	case errors.Is(err, usecase.ErrCapacityExceeded):
		log.Warn(operation+" failed - capacity exceeded", fields...)
		utils.ResponseConflict(w, err.Error())

	case errors.Is(err, usecase.ErrConflict):
		log.Warn(operation+" failed - conflict", fields...)
		utils.ResponseConflict(w, err.Error())

	case errors.Is(err, usecase.ErrIllegalTransition):
		log.Warn(operation+" failed - illegal transition", fields...)
		utils.ResponseUnprocessable(w, err.Error())

	case errors.Is(err, usecase.ErrValidation),
		errors.Is(err, usecase.ErrInsufficientBalance):
		log.Warn(operation+" rejected", fields...)
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrUnauthorized):
		log.Warn(operation+" failed - unauthorized", fields...)
		utils.ResponseUnauthorized(w, err.Error())

	case errors.Is(err, usecase.ErrForbidden):
		log.Warn(operation+" failed - forbidden", fields...)
		utils.ResponseForbidden(w, err.Error())

	default:
		log.Error("Failed to "+operation, fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}

// decodeAndValidate reads a JSON body into dst and runs the validator tags.
// It writes the 400 response itself and reports whether the handler may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return validateRequest(w, dst)
}

func decodeBytes(w http.ResponseWriter, body []byte, dst any) bool {
	if err := json.Unmarshal(body, dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return validateRequest(w, dst)
}

func validateRequest(w http.ResponseWriter, req any) bool {
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return false
	}
	return true
}

// requireActor pulls the caller set by the auth middleware.
func requireActor(w http.ResponseWriter, r *http.Request) (utils.Actor, bool) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return utils.Actor{}, false
	}
	return actor, true
}

// paginationFromQuery reads page and per_page, defaulting to 1 and 10.
func paginationFromQuery(r *http.Request) request.PaginatedRequest {
	query := r.URL.Query()
	req := request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
	if req.PerPage > 100 {
		req.PerPage = 100
	}
	return req
}
