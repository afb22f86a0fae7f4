package ledger

import (
	"math"
	"slices"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book is the balance and open lots of one account.
type Book struct {
	Username  string
	Balance   decimal.Decimal
	Positions []domain.Position
}

// Quantity returns the aggregate number of shares held for symbol, saturating
// at math.MaxInt64.
func (b Book) Quantity(symbol string) int64 {
	var total int64
	for _, p := range b.Positions {
		if p.Symbol != symbol {
			continue
		}
		if total > math.MaxInt64-p.Quantity {
			return math.MaxInt64
		}
		total += p.Quantity
	}
	return total
}

// Outcome describes a successful operation: the resulting book and the lot
// writes needed to persist it.
type Outcome struct {
	Book     Book
	Upserts  []domain.Position
	Deletes  []string        // position IDs
	Total    decimal.Decimal // cash moved: trade cost, sale proceeds, or deposit/withdrawal
	Realized decimal.Decimal // realized profit, sells only
}

// Engine applies ledger operations. It is safe for concurrent use.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp newly opened lots.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator sets the generator for new lot IDs.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// New creates an Engine stamping lots with time.Now and random UUIDs.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deposit adds amount to the balance. A zero deposit is a successful no-op.
func (e *Engine) Deposit(book Book, amount decimal.Decimal) (*Outcome, error) {
	if amount.IsNegative() {
		return nil, &domain.ValidationError{Message: "amount must be >= 0"}
	}
	amount = domain.Round2(amount)

	next := book.clone()
	next.Balance = domain.Round2(book.Balance.Add(amount))
	return &Outcome{Book: next, Total: amount}, nil
}

// Withdraw removes amount from the balance, failing with
// domain.ErrInsufficientFunds when amount exceeds it.
func (e *Engine) Withdraw(book Book, amount decimal.Decimal) (*Outcome, error) {
	if amount.IsNegative() {
		return nil, &domain.ValidationError{Message: "amount must be >= 0"}
	}
	amount = domain.Round2(amount)
	if amount.GreaterThan(book.Balance) {
		return nil, domain.ErrInsufficientFunds
	}

	next := book.clone()
	next.Balance = domain.Round2(book.Balance.Sub(amount))
	return &Outcome{Book: next, Total: amount}, nil
}

// Buy purchases quantity shares of symbol at price.
func (e *Engine) Buy(book Book, symbol string, quantity int64, price decimal.Decimal) (*Outcome, error) {
	price, err := tradePrice(quantity, price)
	if err != nil {
		return nil, err
	}

	total := domain.Round2(price.Mul(decimal.NewFromInt(quantity)))
	if total.GreaterThan(book.Balance) {
		return nil, domain.ErrInsufficientFunds
	}

	idx := slices.IndexFunc(book.Positions, func(p domain.Position) bool {
		return p.Symbol == symbol && p.CostBasis.Equal(price)
	})
	if idx >= 0 && book.Positions[idx].Quantity > math.MaxInt64-quantity {
		return nil, &domain.ValidationError{Message: "quantity would overflow the lot"}
	}

	next := book.clone()
	next.Balance = domain.Round2(book.Balance.Sub(total))

	var lot domain.Position
	if idx >= 0 {
		next.Positions[idx].Quantity += quantity
		lot = next.Positions[idx]
	} else {
		lot = domain.Position{
			ID:        e.newID(),
			Username:  book.Username,
			Symbol:    symbol,
			Quantity:  quantity,
			CostBasis: price,
			OpenedAt:  e.now(),
		}
		next.Positions = append(next.Positions, lot)
	}

	return &Outcome{
		Book:     next,
		Upserts:  []domain.Position{lot},
		Total:    total,
		Realized: decimal.Zero,
	}, nil
}

// Sell disposes of quantity shares of symbol at price, drawing on the
// symbol's lots oldest first. It fails with domain.ErrInsufficientShares
// when the lots together hold fewer than quantity shares.
func (e *Engine) Sell(book Book, symbol string, quantity int64, price decimal.Decimal) (*Outcome, error) {
	price, err := tradePrice(quantity, price)
	if err != nil {
		return nil, err
	}
	if book.Quantity(symbol) < quantity {
		return nil, domain.ErrInsufficientShares
	}

	next := book.clone()
	proceeds := domain.Round2(price.Mul(decimal.NewFromInt(quantity)))
	next.Balance = domain.Round2(book.Balance.Add(proceeds))

	// Indices of the symbol's lots in FIFO order.
	order := make([]int, 0, len(next.Positions))
	for i, p := range next.Positions {
		if p.Symbol == symbol {
			order = append(order, i)
		}
	}
	slices.SortFunc(order, func(a, b int) int {
		pa, pb := next.Positions[a], next.Positions[b]
		switch {
		case pa.Before(pb):
			return -1
		case pb.Before(pa):
			return 1
		}
		return 0
	})

	out := &Outcome{Total: proceeds}
	realized := decimal.Zero
	remaining := quantity
	closed := make(map[string]bool)
	for _, i := range order {
		if remaining == 0 {
			break
		}
		lot := &next.Positions[i]
		take := min(lot.Quantity, remaining)
		realized = realized.Add(price.Sub(lot.CostBasis).Mul(decimal.NewFromInt(take)))
		lot.Quantity -= take
		remaining -= take

		if lot.Quantity == 0 {
			closed[lot.ID] = true
			out.Deletes = append(out.Deletes, lot.ID)
		} else {
			out.Upserts = append(out.Upserts, *lot)
		}
	}

	next.Positions = slices.DeleteFunc(next.Positions, func(p domain.Position) bool {
		return closed[p.ID]
	})
	out.Book = next
	out.Realized = domain.Round2(realized)
	return out, nil
}

// tradePrice validates a trade and returns the price rounded to cents.
func tradePrice(quantity int64, price decimal.Decimal) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	price = domain.Round2(price)
	// A zero or negative quote means the oracle had nothing usable.
	if !price.IsPositive() {
		return decimal.Zero, domain.ErrPriceUnavailable
	}
	return price, nil
}

func (b Book) clone() Book {
	return Book{
		Username:  b.Username,
		Balance:   b.Balance,
		Positions: slices.Clone(b.Positions),
	}
}
