package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountAlreadyExists = errors.New("duplicate_account")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrSessionNotFound      = errors.New("session_not_found")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientShares   = errors.New("insufficient_shares")
	ErrPriceUnavailable     = errors.New("price_unavailable")
	ErrStorage              = errors.New("storage_error")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
