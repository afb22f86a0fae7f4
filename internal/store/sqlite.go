package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	_ "github.com/glebarez/go-sqlite"
	"github.com/shopspring/decimal"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	username      TEXT PRIMARY KEY,
	password_hash BLOB NOT NULL,
	balance       TEXT NOT NULL DEFAULT '0',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS positions (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES accounts(username),
	symbol     TEXT NOT NULL,
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	cost_basis TEXT NOT NULL,
	opened_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS positions_by_username ON positions (username, opened_at, id);
`

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore opens (creating if needed) the database at path with WAL
// enabled and applies the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer and Update relies on it
	// to serialize read-modify-write cycles.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// CreateAccount inserts a new account row.
func (s *SQLiteStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(username) DO NOTHING`,
		a.Username, a.PasswordHash, a.Balance.String(), a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return storageErr("insert account", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("insert account", err)
	}
	if n == 0 {
		return domain.ErrAccountAlreadyExists
	}
	return nil
}

// ReadAccount loads one account.
func (s *SQLiteStore) ReadAccount(ctx context.Context, username string) (*domain.Account, error) {
	return sqliteReadAccount(ctx, s.db, username)
}

// ReadPositions loads an account's lots, oldest first.
func (s *SQLiteStore) ReadPositions(ctx context.Context, username string) ([]domain.Position, error) {
	return sqliteReadPositions(ctx, s.db, username)
}

// Update runs fn inside a database transaction.
func (s *SQLiteStore) Update(ctx context.Context, username string, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer sqlTx.Rollback() // no-op after commit

	if _, err := sqliteReadAccount(ctx, sqlTx, username); err != nil {
		return err
	}

	if err := fn(&sqliteTx{tx: sqlTx, username: username, now: s.now}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx       *sql.Tx
	username string
	now      func() time.Time
}

func (t *sqliteTx) ReadAccount(ctx context.Context, username string) (*domain.Account, error) {
	if err := boundTo(t.username, username); err != nil {
		return nil, err
	}
	return sqliteReadAccount(ctx, t.tx, username)
}

func (t *sqliteTx) ReadPositions(ctx context.Context, username string) ([]domain.Position, error) {
	if err := boundTo(t.username, username); err != nil {
		return nil, err
	}
	return sqliteReadPositions(ctx, t.tx, username)
}

func (t *sqliteTx) WriteBalance(ctx context.Context, username string, balance decimal.Decimal) error {
	if err := boundTo(t.username, username); err != nil {
		return err
	}
	if err := checkBalance(balance); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE username = ?`,
		balance.String(), t.now().UnixNano(), username,
	)
	if err != nil {
		return storageErr("update balance", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storageErr("update balance", err)
	} else if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (t *sqliteTx) UpsertPosition(ctx context.Context, p domain.Position) error {
	if err := checkPosition(t.username, p); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO positions (id, username, symbol, quantity, cost_basis, opened_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			symbol = excluded.symbol,
			quantity = excluded.quantity,
			cost_basis = excluded.cost_basis,
			opened_at = excluded.opened_at`,
		p.ID, p.Username, p.Symbol, p.Quantity, p.CostBasis.String(), p.OpenedAt.UnixNano(),
	)
	if err != nil {
		return storageErr("upsert position", err)
	}
	return nil
}

func (t *sqliteTx) DeletePosition(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM positions WHERE id = ? AND username = ?`, id, t.username)
	if err != nil {
		return storageErr("delete position", err)
	}
	return nil
}

func sqliteReadAccount(ctx context.Context, q sqlQuerier, username string) (*domain.Account, error) {
	var (
		a                domain.Account
		created, updated int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT username, password_hash, balance, created_at, updated_at FROM accounts WHERE username = ?`,
		username,
	).Scan(&a.Username, &a.PasswordHash, &a.Balance, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, storageErr("select account", err)
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	a.UpdatedAt = time.Unix(0, updated).UTC()
	return &a, nil
}

func sqliteReadPositions(ctx context.Context, q sqlQuerier, username string) ([]domain.Position, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, username, symbol, quantity, cost_basis, opened_at
		 FROM positions WHERE username = ? ORDER BY opened_at, id`,
		username,
	)
	if err != nil {
		return nil, storageErr("select positions", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		var (
			p      domain.Position
			opened int64
		)
		if err := rows.Scan(&p.ID, &p.Username, &p.Symbol, &p.Quantity, &p.CostBasis, &opened); err != nil {
			return nil, storageErr("scan position", err)
		}
		p.OpenedAt = time.Unix(0, opened).UTC()
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate positions", err)
	}
	return positions, nil
}
