package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/shopspring/decimal"
)

var errAbort = errors.New("abort")

func newTestAccount(username string) *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		Username:     username,
		PasswordHash: []byte("$2a$04$hash"),
		Balance:      decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newTestPosition(username, id, symbol string, qty int64, cost string, opened time.Time) domain.Position {
	return domain.Position{
		ID:        id,
		Username:  username,
		Symbol:    symbol,
		Quantity:  qty,
		CostBasis: decimal.RequireFromString(cost),
		OpenedAt:  opened,
	}
}

// runStoreSuite exercises the Store contract against any backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t0 := time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC)

	t.Run("CreateAndRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateAccount(ctx, newTestAccount("alice")); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		got, err := s.ReadAccount(ctx, "alice")
		if err != nil {
			t.Fatalf("ReadAccount: %v", err)
		}
		if got.Username != "alice" || !got.Balance.IsZero() || string(got.PasswordHash) != "$2a$04$hash" {
			t.Errorf("ReadAccount = %+v", got)
		}
		positions, err := s.ReadPositions(ctx, "alice")
		if err != nil {
			t.Fatalf("ReadPositions: %v", err)
		}
		if len(positions) != 0 {
			t.Errorf("got %d positions, want 0", len(positions))
		}
	})

	t.Run("DuplicateAccount", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateAccount(ctx, newTestAccount("bob")); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		err := s.CreateAccount(ctx, newTestAccount("bob"))
		if !errors.Is(err, domain.ErrAccountAlreadyExists) {
			t.Fatalf("error = %v, want ErrAccountAlreadyExists", err)
		}
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.ReadAccount(ctx, "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("ReadAccount error = %v, want ErrAccountNotFound", err)
		}
		err := s.Update(ctx, "ghost", func(tx Tx) error { return nil })
		if !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("Update error = %v, want ErrAccountNotFound", err)
		}
	})

	t.Run("UpdateCommits", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.CreateAccount(ctx, newTestAccount("carol"))

		err := s.Update(ctx, "carol", func(tx Tx) error {
			if err := tx.WriteBalance(ctx, "carol", decimal.RequireFromString("700.00")); err != nil {
				return err
			}
			if err := tx.UpsertPosition(ctx, newTestPosition("carol", "p2", "MSFT", 1, "300", t0.Add(time.Minute))); err != nil {
				return err
			}
			return tx.UpsertPosition(ctx, newTestPosition("carol", "p1", "AAPL", 2, "150.00", t0))
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}

		acct, _ := s.ReadAccount(ctx, "carol")
		if !acct.Balance.Equal(decimal.RequireFromString("700")) {
			t.Errorf("balance = %s, want 700", acct.Balance)
		}
		positions, err := s.ReadPositions(ctx, "carol")
		if err != nil {
			t.Fatalf("ReadPositions: %v", err)
		}
		if len(positions) != 2 {
			t.Fatalf("got %d positions, want 2", len(positions))
		}
		// Oldest first regardless of symbol or insertion order.
		if positions[0].ID != "p1" || positions[1].ID != "p2" {
			t.Errorf("order = [%s %s], want [p1 p2]", positions[0].ID, positions[1].ID)
		}
		p := positions[0]
		if p.Symbol != "AAPL" || p.Quantity != 2 || !p.CostBasis.Equal(decimal.NewFromInt(150)) || !p.OpenedAt.Equal(t0) {
			t.Errorf("position = %+v", p)
		}
	})

	t.Run("UpsertUpdatesAndDeleteRemoves", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.CreateAccount(ctx, newTestAccount("dave"))

		lot := newTestPosition("dave", "lot", "AAPL", 5, "10", t0)
		if err := s.Update(ctx, "dave", func(tx Tx) error { return tx.UpsertPosition(ctx, lot) }); err != nil {
			t.Fatalf("insert: %v", err)
		}
		lot.Quantity = 3
		if err := s.Update(ctx, "dave", func(tx Tx) error { return tx.UpsertPosition(ctx, lot) }); err != nil {
			t.Fatalf("update: %v", err)
		}
		positions, _ := s.ReadPositions(ctx, "dave")
		if len(positions) != 1 || positions[0].Quantity != 3 {
			t.Fatalf("positions = %+v, want one lot with quantity 3", positions)
		}

		if err := s.Update(ctx, "dave", func(tx Tx) error { return tx.DeletePosition(ctx, "lot") }); err != nil {
			t.Fatalf("delete: %v", err)
		}
		positions, _ = s.ReadPositions(ctx, "dave")
		if len(positions) != 0 {
			t.Fatalf("got %d positions after delete, want 0", len(positions))
		}
	})

	t.Run("UpdateRollsBack", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.CreateAccount(ctx, newTestAccount("erin"))

		err := s.Update(ctx, "erin", func(tx Tx) error {
			_ = tx.WriteBalance(ctx, "erin", decimal.NewFromInt(99))
			_ = tx.UpsertPosition(ctx, newTestPosition("erin", "x", "AAPL", 1, "1", t0))
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("error = %v, want errAbort", err)
		}

		acct, _ := s.ReadAccount(ctx, "erin")
		if !acct.Balance.IsZero() {
			t.Errorf("balance = %s after rollback, want 0", acct.Balance)
		}
		positions, _ := s.ReadPositions(ctx, "erin")
		if len(positions) != 0 {
			t.Errorf("got %d positions after rollback, want 0", len(positions))
		}
	})

	t.Run("TxSeesOwnWrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.CreateAccount(ctx, newTestAccount("fay"))

		err := s.Update(ctx, "fay", func(tx Tx) error {
			if err := tx.WriteBalance(ctx, "fay", decimal.NewFromInt(5)); err != nil {
				return err
			}
			acct, err := tx.ReadAccount(ctx, "fay")
			if err != nil {
				return err
			}
			if !acct.Balance.Equal(decimal.NewFromInt(5)) {
				return fmt.Errorf("tx balance = %s, want 5", acct.Balance)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("RejectsInvalidWrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.CreateAccount(ctx, newTestAccount("gus"))

		cases := map[string]func(tx Tx) error{
			"negative balance": func(tx Tx) error {
				return tx.WriteBalance(ctx, "gus", decimal.NewFromInt(-1))
			},
			"empty lot": func(tx Tx) error {
				return tx.UpsertPosition(ctx, newTestPosition("gus", "z", "AAPL", 0, "1", t0))
			},
			"foreign lot": func(tx Tx) error {
				return tx.UpsertPosition(ctx, newTestPosition("other", "z", "AAPL", 1, "1", t0))
			},
		}
		for name, fn := range cases {
			if err := s.Update(ctx, "gus", fn); err == nil {
				t.Errorf("%s: expected error", name)
			}
		}
		if err := s.Update(ctx, "gus", func(tx Tx) error {
			_, err := tx.ReadAccount(ctx, "someone-else")
			return err
		}); !errors.Is(err, domain.ErrStorage) {
			t.Errorf("cross-account read error = %v, want ErrStorage", err)
		}
	})

	t.Run("ConcurrentUpdatesSerialize", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.CreateAccount(ctx, newTestAccount("hal"))

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Update(ctx, "hal", func(tx Tx) error {
					acct, err := tx.ReadAccount(ctx, "hal")
					if err != nil {
						return err
					}
					return tx.WriteBalance(ctx, "hal", acct.Balance.Add(decimal.NewFromInt(1)))
				})
				if err != nil {
					t.Errorf("Update: %v", err)
				}
			}()
		}
		wg.Wait()

		acct, _ := s.ReadAccount(ctx, "hal")
		if !acct.Balance.Equal(decimal.NewFromInt(workers)) {
			t.Errorf("balance = %s, want %d (lost update)", acct.Balance, workers)
		}
	})
}
