package handlers

import (
	"errors"
	"net/http"

	"github.com/ecovend/backend/internal/middleware"
	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/rs/zerolog"
)

// sendDomainError maps service errors onto HTTP responses.
func sendDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrInsufficientBalance):
		services.SendErrorResponse(w, "Insufficient balance", http.StatusPaymentRequired, nil)
	case errors.Is(err, models.ErrInvalidAmount):
		services.SendErrorResponse(w, "Amount must be positive", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrStaleAccount):
		services.SendErrorResponse(w, "Account was updated elsewhere, reload and retry", http.StatusConflict, nil)
	case errors.Is(err, models.ErrAlreadyExists):
		services.SendErrorResponse(w, "Account already exists", http.StatusConflict, nil)
	case errors.Is(err, models.ErrInvalidCredentials):
		services.SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
	case errors.Is(err, models.ErrAccountNotFound):
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
	case errors.Is(err, models.ErrPersistence):
		log.Error().Err(err).Msg("Ledger update not persisted")
		services.SendErrorResponse(w, "Failed to save, the change was not applied", http.StatusInternalServerError, nil)
	case errors.Is(err, services.ErrClassifierNotConfigured):
		services.SendErrorResponse(w, "Classifier is not configured", http.StatusServiceUnavailable, nil)
	case errors.Is(err, services.ErrClassifierTransport):
		log.Error().Err(err).Msg("Classifier unavailable")
		services.SendErrorResponse(w, "Classifier is unavailable, please retry", http.StatusBadGateway, nil)
	case errors.Is(err, services.ErrClassificationUnusable):
		services.SendErrorResponse(w, "Could not identify the item, please rescan", http.StatusUnprocessableEntity, nil)
	case errors.Is(err, services.ErrMalformedBody), errors.Is(err, services.ErrMultipleJSONValue):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	default:
		log.Error().Err(err).Msg("Request failed")
		services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
	}
}

func identityOrUnauthorized(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return identity, ok
}
