package quote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Static serves fixed prices, for offline runs and tests.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStatic creates a Static oracle from symbol → price.
func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for symbol, price := range prices {
		s.prices[strings.ToUpper(symbol)] = price
	}
	return s
}

// LoadStatic reads a YAML file of `SYMBOL: price` pairs.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quotes file: %w", err)
	}

	var raw map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse quotes yaml: %w", err)
	}

	prices := make(map[string]decimal.Decimal, len(raw))
	for symbol, price := range raw {
		prices[symbol] = decimal.NewFromFloat(price)
	}
	return NewStatic(prices), nil
}

// Set replaces the price for a symbol.
func (s *Static) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = price
}

// Remove forgets a symbol so later quotes for it are unavailable.
func (s *Static) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, strings.ToUpper(symbol))
}

// Quote returns the configured price for symbol.
func (s *Static) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, unavailable(symbol, err)
	}
	s.mu.RLock()
	price, ok := s.prices[symbol]
	s.mu.RUnlock()

	if !ok || !price.IsPositive() {
		return decimal.Zero, unavailable(symbol, errors.New("no configured price"))
	}
	return price, nil
}
