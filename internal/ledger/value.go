package ledger

import (
	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/shopspring/decimal"
)

// LotValue is one lot marked to the market. Price, Value and Profit are
// nil when no quote was available for the lot's symbol.
type LotValue struct {
	Position domain.Position
	Price    *decimal.Decimal
	Value    *decimal.Decimal
	Profit   *decimal.Decimal
}

// Valuation marks every lot of a book to the given quotes.
type Valuation struct {
	Lots        []LotValue
	MarketValue decimal.Decimal // sum of the values of priced lots
	Unpriced    int             // lots without a quote
}

// Value marks positions to quotes. A missing quote leaves the lot unpriced
// instead of valuing it at zero.
func Value(positions []domain.Position, quotes map[string]decimal.Decimal) Valuation {
	v := Valuation{
		Lots:        make([]LotValue, 0, len(positions)),
		MarketValue: decimal.Zero,
	}
	for _, p := range positions {
		lv := LotValue{Position: p}
		price, ok := quotes[p.Symbol]
		if !ok || !price.IsPositive() {
			v.Unpriced++
			v.Lots = append(v.Lots, lv)
			continue
		}

		qty := decimal.NewFromInt(p.Quantity)
		value := domain.Round2(price.Mul(qty))
		profit := domain.Round2(price.Sub(p.CostBasis).Mul(qty))
		lv.Price = &price
		lv.Value = &value
		lv.Profit = &profit

		v.MarketValue = v.MarketValue.Add(value)
		v.Lots = append(v.Lots, lv)
	}
	return v
}
