package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered user and their cash balance.
type Account struct {
	Username     string
	PasswordHash []byte
	Balance      decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Position is a single lot: shares of one symbol bought at one price.
// A position with Quantity <= 0 is never persisted.
type Position struct {
	ID        string
	Username  string
	Symbol    string
	Quantity  int64
	CostBasis decimal.Decimal // per share
	OpenedAt  time.Time
}

// Cost returns the total amount paid for the shares still in the lot.
func (p Position) Cost() decimal.Decimal {
	return p.CostBasis.Mul(decimal.NewFromInt(p.Quantity))
}

// Before reports whether p is consumed before q when selling FIFO.
func (p Position) Before(q Position) bool {
	if !p.OpenedAt.Equal(q.OpenedAt) {
		return p.OpenedAt.Before(q.OpenedAt)
	}
	return p.ID < q.ID
}

// Session binds an authenticated user to a bearer token.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
