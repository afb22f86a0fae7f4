package domain

import (
	"regexp"
	"strings"
)

var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)

// NormalizeSymbol trims and upper-cases a ticker and validates its shape.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(symbol) {
		return "", &ValidationError{
			Message: "symbol must match ^[A-Z][A-Z0-9.]{0,9}$",
		}
	}
	return symbol, nil
}
