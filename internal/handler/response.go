package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/shopspring/decimal"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// writeServiceError maps a service error to its HTTP status and error code.
// Storage and unknown errors are reported without their details.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
	case errors.Is(err, domain.ErrSessionNotFound):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Session is missing, expired or revoked")
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", "Account not found")
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		WriteError(w, http.StatusConflict, "duplicate_account", "Username is already taken")
	case errors.Is(err, domain.ErrInsufficientFunds):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_funds", "Insufficient funds")
	case errors.Is(err, domain.ErrInsufficientShares):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_shares", "Insufficient shares")
	case errors.Is(err, domain.ErrPriceUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "price_unavailable", "Price unavailable, try again later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// moneyResponse renders an amount as a fixed two-decimal string plus a
// display form, e.g. {"amount":"1020.00","display":"$1,020.00"}.
type moneyResponse struct {
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

func newMoney(d decimal.Decimal) moneyResponse {
	return moneyResponse{
		Amount:  domain.Fixed(d),
		Display: domain.Display(d),
	}
}

// optionalMoney returns nil for a nil amount so it is omitted or null.
func optionalMoney(d *decimal.Decimal) *moneyResponse {
	if d == nil {
		return nil
	}
	m := newMoney(*d)
	return &m
}
