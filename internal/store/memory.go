package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// positionLess orders an account's lots by symbol, then FIFO.
func positionLess(a, b domain.Position) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.Before(b)
}

// memAccount is one account's state. write serializes Update callbacks;
// mu guards the committed fields.
type memAccount struct {
	write sync.Mutex

	mu      sync.RWMutex
	account domain.Account
	lots    *btree.BTreeG[domain.Position]
	index   map[string]domain.Position // position id → lot
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memAccount
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memAccount),
		now:      time.Now,
	}
}

func (s *MemoryStore) get(username string) (*memAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acct, nil
}

// CreateAccount adds an account. It returns domain.ErrAccountAlreadyExists
// if the username is taken.
func (s *MemoryStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.Username]; exists {
		return domain.ErrAccountAlreadyExists
	}
	const degree = 8
	s.accounts[a.Username] = &memAccount{
		account: *a,
		lots:    btree.NewG[domain.Position](degree, positionLess),
		index:   make(map[string]domain.Position),
	}
	return nil
}

// ReadAccount returns a copy of the committed account.
func (s *MemoryStore) ReadAccount(ctx context.Context, username string) (*domain.Account, error) {
	acct, err := s.get(username)
	if err != nil {
		return nil, err
	}
	acct.mu.RLock()
	defer acct.mu.RUnlock()

	a := acct.account
	return &a, nil
}

// ReadPositions returns the committed lots, oldest first.
func (s *MemoryStore) ReadPositions(ctx context.Context, username string) ([]domain.Position, error) {
	acct, err := s.get(username)
	if err != nil {
		return nil, err
	}
	acct.mu.RLock()
	defer acct.mu.RUnlock()

	return fifo(acct.lots), nil
}

// Update stages fn's writes on copy-on-write clones and swaps them in only
// when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, username string, fn func(tx Tx) error) error {
	acct, err := s.get(username)
	if err != nil {
		return err
	}
	acct.write.Lock()
	defer acct.write.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	acct.mu.RLock()
	tx := &memTx{
		username: username,
		account:  acct.account,
		lots:     acct.lots.Clone(),
		index:    maps.Clone(acct.index),
		now:      s.now,
	}
	acct.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	acct.mu.Lock()
	acct.account = tx.account
	acct.lots = tx.lots
	acct.index = tx.index
	acct.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// memTx holds the staged state of one account.
type memTx struct {
	username string
	account  domain.Account
	lots     *btree.BTreeG[domain.Position]
	index    map[string]domain.Position
	now      func() time.Time
}

func (tx *memTx) ReadAccount(ctx context.Context, username string) (*domain.Account, error) {
	if err := boundTo(tx.username, username); err != nil {
		return nil, err
	}
	a := tx.account
	return &a, nil
}

func (tx *memTx) ReadPositions(ctx context.Context, username string) ([]domain.Position, error) {
	if err := boundTo(tx.username, username); err != nil {
		return nil, err
	}
	return fifo(tx.lots), nil
}

func (tx *memTx) WriteBalance(ctx context.Context, username string, balance decimal.Decimal) error {
	if err := boundTo(tx.username, username); err != nil {
		return err
	}
	if err := checkBalance(balance); err != nil {
		return err
	}
	tx.account.Balance = balance
	tx.account.UpdatedAt = tx.now()
	return nil
}

func (tx *memTx) UpsertPosition(ctx context.Context, p domain.Position) error {
	if err := checkPosition(tx.username, p); err != nil {
		return err
	}
	if old, ok := tx.index[p.ID]; ok {
		tx.lots.Delete(old)
	}
	tx.lots.ReplaceOrInsert(p)
	tx.index[p.ID] = p
	return nil
}

// DeletePosition removes a lot; deleting an unknown id is a no-op.
func (tx *memTx) DeletePosition(ctx context.Context, id string) error {
	old, ok := tx.index[id]
	if !ok {
		return nil
	}
	delete(tx.index, id)
	tx.lots.Delete(old)
	return nil
}

// fifo lists lots oldest first across all symbols.
func fifo(tree *btree.BTreeG[domain.Position]) []domain.Position {
	out := make([]domain.Position, 0, tree.Len())
	tree.Ascend(func(p domain.Position) bool {
		out = append(out, p)
		return true
	})
	sortFIFO(out)
	return out
}
