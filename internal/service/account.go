package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/efreitasn/papertrader/internal/auth"
	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/efreitasn/papertrader/internal/ledger"
	"github.com/efreitasn/papertrader/internal/store"
	"github.com/shopspring/decimal"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// RegisterRequest represents the input for account registration.
type RegisterRequest struct {
	Username string
	Password string
}

// BalanceResult is an account's cash after a balance query or cash movement.
type BalanceResult struct {
	Username string
	Balance  decimal.Decimal
	Amount   decimal.Decimal // deposited or withdrawn; zero for plain queries
}

// AccountService handles registration, login and cash movements.
type AccountService struct {
	store    store.Store
	ledger   *ledger.Engine
	hasher   *auth.PasswordHasher
	sessions *auth.SessionManager
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	st store.Store,
	eng *ledger.Engine,
	hasher *auth.PasswordHasher,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		store:    st,
		ledger:   eng,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Register validates the request and creates an account with a zero balance.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*domain.Account, error) {
	if !usernameRegex.MatchString(req.Username) {
		return nil, &domain.ValidationError{
			Message: "username must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	account := &domain.Account{
		Username:     req.Username,
		PasswordHash: hash,
		Balance:      decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", slog.String("username", account.Username))
	return account, nil
}

// Login checks credentials and opens a session. An unknown username and a
// wrong password fail the same way.
func (s *AccountService) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	account, err := s.store.ReadAccount(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.logger.Info("login failed", slog.String("username", username))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.Info("login failed", slog.String("username", username))
		}
		return nil, err
	}

	session := s.sessions.Create(account.Username)
	s.logger.Info("login", slog.String("username", account.Username))
	return &session, nil
}

// Logout revokes the session's token.
func (s *AccountService) Logout(session *domain.Session) {
	s.sessions.Revoke(session.Token)
	s.logger.Info("logout", slog.String("username", session.Username))
}

// Authenticate resolves a bearer token to its live session.
func (s *AccountService) Authenticate(token string) (*domain.Session, error) {
	session, err := s.sessions.Get(token)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Balance returns the session owner's cash balance.
func (s *AccountService) Balance(ctx context.Context, session *domain.Session) (*BalanceResult, error) {
	account, err := s.store.ReadAccount(ctx, session.Username)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{
		Username: account.Username,
		Balance:  account.Balance,
		Amount:   decimal.Zero,
	}, nil
}

// Deposit adds amount to the session owner's balance.
func (s *AccountService) Deposit(ctx context.Context, session *domain.Session, amount decimal.Decimal) (*BalanceResult, error) {
	return s.moveCash(ctx, session, "deposit", amount, s.ledger.Deposit)
}

// Withdraw removes amount from the session owner's balance.
func (s *AccountService) Withdraw(ctx context.Context, session *domain.Session, amount decimal.Decimal) (*BalanceResult, error) {
	return s.moveCash(ctx, session, "withdraw", amount, s.ledger.Withdraw)
}

func (s *AccountService) moveCash(
	ctx context.Context,
	session *domain.Session,
	op string,
	amount decimal.Decimal,
	apply func(ledger.Book, decimal.Decimal) (*ledger.Outcome, error),
) (*BalanceResult, error) {
	if err := domain.ValidateAmount("amount", amount); err != nil {
		return nil, err
	}

	var out *ledger.Outcome
	err := s.store.Update(ctx, session.Username, func(tx store.Tx) error {
		book, err := loadBook(ctx, tx, session.Username)
		if err != nil {
			return err
		}
		out, err = apply(book, amount)
		if err != nil {
			return err
		}
		return persist(ctx, tx, session.Username, out)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(op,
		slog.String("username", session.Username),
		slog.String("amount", domain.Fixed(out.Total)),
		slog.String("balance", domain.Fixed(out.Book.Balance)),
	)
	return &BalanceResult{
		Username: session.Username,
		Balance:  out.Book.Balance,
		Amount:   out.Total,
	}, nil
}

// loadBook reads the account's balance and lots into a ledger.Book.
func loadBook(ctx context.Context, r store.Reader, username string) (ledger.Book, error) {
	account, err := r.ReadAccount(ctx, username)
	if err != nil {
		return ledger.Book{}, err
	}
	positions, err := r.ReadPositions(ctx, username)
	if err != nil {
		return ledger.Book{}, err
	}
	return ledger.Book{
		Username:  account.Username,
		Balance:   account.Balance,
		Positions: positions,
	}, nil
}

// persist writes an Outcome's balance and lot changes through tx.
func persist(ctx context.Context, tx store.Tx, username string, out *ledger.Outcome) error {
	if err := tx.WriteBalance(ctx, username, out.Book.Balance); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	for _, p := range out.Upserts {
		if err := tx.UpsertPosition(ctx, p); err != nil {
			return fmt.Errorf("upsert position %s: %w", p.ID, err)
		}
	}
	for _, id := range out.Deletes {
		if err := tx.DeletePosition(ctx, id); err != nil {
			return fmt.Errorf("delete position %s: %w", id, err)
		}
	}
	return nil
}
