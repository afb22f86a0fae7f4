package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/efreitasn/papertrader/internal/auth"
	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/efreitasn/papertrader/internal/ledger"
	"github.com/efreitasn/papertrader/internal/quote"
	"github.com/efreitasn/papertrader/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testEnv wires both services to an in-memory store and a static oracle.
type testEnv struct {
	store    *store.MemoryStore
	oracle   *quote.Static
	accounts *AccountService
	trades   *TradeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()
	eng := ledger.New()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	sessions := auth.NewSessionManager(time.Hour, time.Minute)
	oracle := quote.NewStatic(map[string]decimal.Decimal{
		"AAPL": d("150.00"),
		"MSFT": d("410.25"),
	})

	return &testEnv{
		store:    st,
		oracle:   oracle,
		accounts: NewAccountService(st, eng, hasher, sessions, logger),
		trades:   NewTradeService(st, eng, oracle, time.Second, logger),
	}
}

// login registers username and returns a live session for it.
func (e *testEnv) login(t *testing.T, username string) *domain.Session {
	t.Helper()
	ctx := context.Background()
	if _, err := e.accounts.Register(ctx, RegisterRequest{Username: username, Password: "pw-" + username}); err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	session, err := e.accounts.Login(ctx, username, "pw-"+username)
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return session
}

// fund registers username with balance cash.
func (e *testEnv) fund(t *testing.T, username, balance string) *domain.Session {
	t.Helper()
	session := e.login(t, username)
	if _, err := e.accounts.Deposit(context.Background(), session, d(balance)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	return session
}
