package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	username      TEXT PRIMARY KEY,
	password_hash BYTEA NOT NULL,
	balance       NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS positions (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES accounts (username),
	symbol     TEXT NOT NULL,
	quantity   BIGINT NOT NULL CHECK (quantity > 0),
	cost_basis NUMERIC(20, 2) NOT NULL,
	opened_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS positions_by_username ON positions (username, opened_at, id);
`

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPostgresStore connects to databaseURL, verifies connectivity, and
// applies the schema. NUMERIC columns are decoded as decimal.Decimal.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (username, password_hash, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (username) DO NOTHING`,
		a.Username, a.PasswordHash, a.Balance, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return storageErr("insert account", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountAlreadyExists
	}
	return nil
}

// ReadAccount loads one account.
func (s *PostgresStore) ReadAccount(ctx context.Context, username string) (*domain.Account, error) {
	return pgReadAccount(ctx, s.pool, username, false)
}

// ReadPositions loads an account's lots, oldest first.
func (s *PostgresStore) ReadPositions(ctx context.Context, username string) ([]domain.Position, error) {
	return pgReadPositions(ctx, s.pool, username)
}

// Update runs fn in a transaction holding the account row lock, so
// concurrent updates of one account run one after another.
func (s *PostgresStore) Update(ctx context.Context, username string, fn func(tx Tx) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := pgReadAccount(ctx, tx, username, true); err != nil {
			return err
		}
		fnErr = fn(&pgTx{tx: tx, username: username, now: s.now})
		return fnErr
	})
	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrStorage):
		return err
	}
	return storageErr("transaction", err)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	tx       pgx.Tx
	username string
	now      func() time.Time
}

func (t *pgTx) ReadAccount(ctx context.Context, username string) (*domain.Account, error) {
	if err := boundTo(t.username, username); err != nil {
		return nil, err
	}
	return pgReadAccount(ctx, t.tx, username, false)
}

func (t *pgTx) ReadPositions(ctx context.Context, username string) ([]domain.Position, error) {
	if err := boundTo(t.username, username); err != nil {
		return nil, err
	}
	return pgReadPositions(ctx, t.tx, username)
}

func (t *pgTx) WriteBalance(ctx context.Context, username string, balance decimal.Decimal) error {
	if err := boundTo(t.username, username); err != nil {
		return err
	}
	if err := checkBalance(balance); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, updated_at = $2 WHERE username = $3`,
		balance, t.now(), username,
	)
	if err != nil {
		return storageErr("update balance", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (t *pgTx) UpsertPosition(ctx context.Context, p domain.Position) error {
	if err := checkPosition(t.username, p); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO positions (id, username, symbol, quantity, cost_basis, opened_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			quantity = EXCLUDED.quantity,
			cost_basis = EXCLUDED.cost_basis,
			opened_at = EXCLUDED.opened_at`,
		p.ID, p.Username, p.Symbol, p.Quantity, p.CostBasis, p.OpenedAt,
	)
	if err != nil {
		return storageErr("upsert position", err)
	}
	return nil
}

func (t *pgTx) DeletePosition(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM positions WHERE id = $1 AND username = $2`, id, t.username)
	if err != nil {
		return storageErr("delete position", err)
	}
	return nil
}

func pgReadAccount(ctx context.Context, q pgQuerier, username string, forUpdate bool) (*domain.Account, error) {
	query := `SELECT username, password_hash, balance, created_at, updated_at FROM accounts WHERE username = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var a domain.Account
	err := q.QueryRow(ctx, query, username).
		Scan(&a.Username, &a.PasswordHash, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, storageErr("select account", err)
	}
	return &a, nil
}

func pgReadPositions(ctx context.Context, q pgQuerier, username string) ([]domain.Position, error) {
	rows, err := q.Query(ctx,
		`SELECT id, username, symbol, quantity, cost_basis, opened_at
		 FROM positions WHERE username = $1 ORDER BY opened_at, id`,
		username,
	)
	if err != nil {
		return nil, storageErr("select positions", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ID, &p.Username, &p.Symbol, &p.Quantity, &p.CostBasis, &p.OpenedAt); err != nil {
			return nil, storageErr("scan position", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate positions", err)
	}
	return positions, nil
}
