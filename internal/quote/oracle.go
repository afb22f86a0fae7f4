// Package quote looks up the latest trade price for a ticker.
//
// Every Oracle failure, whatever its cause, is reported wrapped in
// domain.ErrPriceUnavailable so callers can refuse to trade on it.
package quote

import (
	"context"
	"fmt"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/shopspring/decimal"
)

// Oracle returns the latest known price for a normalized symbol.
type Oracle interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// unavailable wraps cause in domain.ErrPriceUnavailable.
func unavailable(symbol string, cause error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPriceUnavailable, symbol, cause)
}
