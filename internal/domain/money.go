package domain

import (
	"fmt"
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the single currency every account is denominated in.
const Currency = money.USD

// Round2 rounds a monetary value to cents. decimal.Round rounds half away
// from zero, which is half-up for the non-negative amounts the ledger uses.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// HasCents reports whether d carries at most 2 decimal places.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// ValidateAmount checks a user-supplied cash amount: it must be >= 0 and
// have at most 2 decimal places. field names the input in the message.
func ValidateAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &ValidationError{Message: fmt.Sprintf("%s must be >= 0", field)}
	}
	if !HasCents(d) {
		return &ValidationError{Message: fmt.Sprintf("%s must have at most 2 decimal places", field)}
	}
	return nil
}

// Fixed renders an amount with exactly two decimals, e.g. "700.00".
func Fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// Display renders an amount for humans, e.g. "$1,020.00". Amounts whose cents
// don't fit in an int64 are rendered without digit grouping.
func Display(d decimal.Decimal) string {
	cents := Round2(d).Shift(2)
	if cents.Abs().GreaterThan(maxCents) {
		if d.IsNegative() {
			return "-$" + Fixed(d.Neg())
		}
		return "$" + Fixed(d)
	}
	return money.New(cents.IntPart(), Currency).Display()
}
