// Package store persists accounts and their lots.
//
// Three backends implement Store: an in-memory store for tests and
// throwaway runs, SQLite (the default, a single local file) and Postgres.
// Every backend runs Update callbacks atomically and serializes callbacks
// that target the same account.
package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/shopspring/decimal"
)

// Reader reads committed ledger state.
type Reader interface {
	// ReadAccount returns domain.ErrAccountNotFound for unknown users.
	ReadAccount(ctx context.Context, username string) (*domain.Account, error)
	// ReadPositions returns the account's lots, oldest first.
	ReadPositions(ctx context.Context, username string) ([]domain.Position, error)
}

// Tx is the view of one account inside Store.Update. Writes become visible
// to other readers only when the callback returns nil.
type Tx interface {
	Reader
	WriteBalance(ctx context.Context, username string, balance decimal.Decimal) error
	UpsertPosition(ctx context.Context, p domain.Position) error
	DeletePosition(ctx context.Context, id string) error
}

// Store is the durable ledger.
type Store interface {
	Reader
	// CreateAccount returns domain.ErrAccountAlreadyExists when the
	// username is taken.
	CreateAccount(ctx context.Context, a *domain.Account) error
	// Update runs fn against username's account in a single atomic unit.
	// If fn returns an error nothing it wrote is kept and the error is
	// returned unchanged.
	Update(ctx context.Context, username string, fn func(tx Tx) error) error
	Close() error
}

// storageErr tags a backend failure with domain.ErrStorage.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}

// checkPosition guards the invariant that empty lots are deleted, never
// written.
func checkPosition(username string, p domain.Position) error {
	if p.ID == "" {
		return &domain.ValidationError{Message: "position id is required"}
	}
	if p.Quantity <= 0 {
		return &domain.ValidationError{
			Message: fmt.Sprintf("position %s must have a positive quantity, got %d", p.ID, p.Quantity),
		}
	}
	if p.Username != username {
		return &domain.ValidationError{
			Message: fmt.Sprintf("position %s belongs to %q, not %q", p.ID, p.Username, username),
		}
	}
	return nil
}

// checkBalance guards the non-negative balance invariant.
func checkBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return &domain.ValidationError{Message: "balance must be >= 0"}
	}
	return nil
}

// boundTo rejects tx access to any account other than the one being updated.
func boundTo(txUser, username string) error {
	if txUser != username {
		return fmt.Errorf("%w: transaction for %q cannot access %q", domain.ErrStorage, txUser, username)
	}
	return nil
}

// sortFIFO orders lots oldest first.
func sortFIFO(lots []domain.Position) {
	slices.SortFunc(lots, func(a, b domain.Position) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
}
