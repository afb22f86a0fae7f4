package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/efreitasn/papertrader/internal/ledger"
	"github.com/efreitasn/papertrader/internal/quote"
	"github.com/efreitasn/papertrader/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// portfolioQuoteWorkers bounds concurrent oracle lookups per portfolio.
const portfolioQuoteWorkers = 4

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeRequest represents the input for a market trade.
type TradeRequest struct {
	Side     Side
	Symbol   string
	Quantity int64
}

// TradeResult describes an executed trade.
type TradeResult struct {
	Side       Side
	Symbol     string
	Quantity   int64
	Price      decimal.Decimal
	Total      decimal.Decimal
	Realized   *decimal.Decimal // nil for buys
	Balance    decimal.Decimal
	ExecutedAt time.Time
}

// QuoteResult is a single symbol's latest price.
type QuoteResult struct {
	Symbol   string
	Price    decimal.Decimal
	QuotedAt time.Time
}

// Portfolio is an account's cash and lots marked to current quotes.
type Portfolio struct {
	Username    string
	Balance     decimal.Decimal
	Lots        []ledger.LotValue
	MarketValue decimal.Decimal
	Unpriced    int
	ValuedAt    time.Time
}

// TradeService executes trades at oracle prices and values portfolios.
type TradeService struct {
	store        store.Store
	ledger       *ledger.Engine
	oracle       quote.Oracle
	quoteTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewTradeService creates a new TradeService. Every oracle call is bounded
// by quoteTimeout.
func NewTradeService(
	st store.Store,
	eng *ledger.Engine,
	oracle quote.Oracle,
	quoteTimeout time.Duration,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		store:        st,
		ledger:       eng,
		oracle:       oracle,
		quoteTimeout: quoteTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Execute buys or sells at the current quote. The quote is fetched before
// the account is locked; the trade itself is atomic.
func (s *TradeService) Execute(ctx context.Context, session *domain.Session, req TradeRequest) (*TradeResult, error) {
	if req.Side != SideBuy && req.Side != SideSell {
		return nil, &domain.ValidationError{Message: "side must be one of: buy, sell"}
	}
	symbol, err := domain.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	price, err := s.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var out *ledger.Outcome
	err = s.store.Update(ctx, session.Username, func(tx store.Tx) error {
		book, err := loadBook(ctx, tx, session.Username)
		if err != nil {
			return err
		}
		if req.Side == SideBuy {
			out, err = s.ledger.Buy(book, symbol, req.Quantity, price)
		} else {
			out, err = s.ledger.Sell(book, symbol, req.Quantity, price)
		}
		if err != nil {
			return err
		}
		return persist(ctx, tx, session.Username, out)
	})
	if err != nil {
		s.logger.Info("trade rejected",
			slog.String("username", session.Username),
			slog.String("side", string(req.Side)),
			slog.String("symbol", symbol),
			slog.Int64("quantity", req.Quantity),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	result := &TradeResult{
		Side:       req.Side,
		Symbol:     symbol,
		Quantity:   req.Quantity,
		Price:      price,
		Total:      out.Total,
		Balance:    out.Book.Balance,
		ExecutedAt: s.now().UTC(),
	}
	if req.Side == SideSell {
		realized := out.Realized
		result.Realized = &realized
	}

	s.logger.Info("trade executed",
		slog.String("username", session.Username),
		slog.String("side", string(result.Side)),
		slog.String("symbol", result.Symbol),
		slog.Int64("quantity", result.Quantity),
		slog.String("price", domain.Fixed(result.Price)),
		slog.String("total", domain.Fixed(result.Total)),
		slog.String("balance", domain.Fixed(result.Balance)),
	)
	return result, nil
}

// Portfolio values every lot of the session owner at current quotes. A
// symbol whose quote fails is reported unpriced rather than failing the
// whole request.
func (s *TradeService) Portfolio(ctx context.Context, session *domain.Session) (*Portfolio, error) {
	// Balance and lots come from one Update so a concurrent trade can't land
	// between the two reads. The callback writes nothing.
	var book ledger.Book
	err := s.store.Update(ctx, session.Username, func(tx store.Tx) error {
		var err error
		book, err = loadBook(ctx, tx, session.Username)
		return err
	})
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(book.Positions))
	for _, p := range book.Positions {
		if !slices.Contains(symbols, p.Symbol) {
			symbols = append(symbols, p.Symbol)
		}
	}

	var mu sync.Mutex
	quotes := make(map[string]decimal.Decimal, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(portfolioQuoteWorkers)
	for _, symbol := range symbols {
		g.Go(func() error {
			price, err := s.quote(gctx, symbol)
			if err != nil {
				s.logger.Warn("portfolio quote unavailable",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			quotes[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	v := ledger.Value(book.Positions, quotes)
	return &Portfolio{
		Username:    book.Username,
		Balance:     book.Balance,
		Lots:        v.Lots,
		MarketValue: v.MarketValue,
		Unpriced:    v.Unpriced,
		ValuedAt:    s.now().UTC(),
	}, nil
}

// Quote returns the current price for a symbol.
func (s *TradeService) Quote(ctx context.Context, rawSymbol string) (*QuoteResult, error) {
	symbol, err := domain.NormalizeSymbol(rawSymbol)
	if err != nil {
		return nil, err
	}
	price, err := s.quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		Symbol:   symbol,
		Price:    price,
		QuotedAt: s.now().UTC(),
	}, nil
}

// quote asks the oracle for symbol's price, bounded by quoteTimeout and
// rounded to cents.
func (s *TradeService) quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if s.quoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.quoteTimeout)
		defer cancel()
	}

	price, err := s.oracle.Quote(ctx, symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrPriceUnavailable) {
			err = fmt.Errorf("%w: %s: %v", domain.ErrPriceUnavailable, symbol, err)
		}
		return decimal.Zero, err
	}
	price = domain.Round2(price)
	if !price.IsPositive() {
		return decimal.Zero, domain.ErrPriceUnavailable
	}
	return price, nil
}
