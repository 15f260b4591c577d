// Package http реализует REST API витрины поверх chi.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

// ErrorResponse — единый формат ошибок API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondDomainError переводит доменные ошибки в HTTP-статусы.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrStockExceeded):
		respondError(w, http.StatusConflict, "stock_exceeded", err.Error())
	case errors.Is(err, domain.ErrOrderVersionConflict):
		respondError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrCartEmpty):
		respondError(w, http.StatusUnprocessableEntity, "cart_empty", err.Error())
	case errors.Is(err, domain.ErrQuantityInvalid),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrShippingCostNegative),
		errors.Is(err, domain.ErrItemsRequired):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		respondError(w, http.StatusUnprocessableEntity, "idempotency_mismatch", err.Error())
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		respondError(w, http.StatusConflict, "request_in_flight", err.Error())
	default:
		log.WithError(err).Error("internal error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
