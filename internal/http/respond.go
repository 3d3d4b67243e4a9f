package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/marc100s/store-core/internal/repository"
	"github.com/marc100s/store-core/internal/service"
)

// ErrorResponse is the inline-message shape the UI renders for recoverable
// failures (stock, missing items). Success is always false here.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
	})
}

// handleServiceError maps the error taxonomy onto HTTP statuses. Stock and
// not-found failures surface as inline messages; payment provider failures
// degrade to "temporarily unavailable" instead of taking down the page.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOutOfStock):
		respondError(w, http.StatusConflict, "out_of_stock", "not enough stock for this product")
	case errors.Is(err, service.ErrConcurrentModification):
		respondError(w, http.StatusConflict, "concurrent_modification", "cart changed while updating, please retry")
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		respondError(w, http.StatusConflict, "already_paid", "order is already paid")
	case errors.Is(err, service.ErrPaymentProvider):
		respondError(w, http.StatusBadGateway, "payment_unavailable", "payment is temporarily unavailable")
	case errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
