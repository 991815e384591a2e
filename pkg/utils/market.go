package utils

import (
	"fmt"
	"strings"
)

// Market codes follow the exchange convention QUOTE-BASE, e.g.
// "KRW-BTC" is bitcoin quoted in won.

// ParseMarket splits a market code into quote and base currencies.
func ParseMarket(code string) (quote, base string, err error) {
	parts := strings.SplitN(strings.ToUpper(code), "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid market code %q, want QUOTE-BASE", code)
	}
	return parts[0], parts[1], nil
}

// NormalizeMarket upper-cases a market code and validates its shape.
func NormalizeMarket(code string) (string, error) {
	quote, base, err := ParseMarket(code)
	if err != nil {
		return "", err
	}
	return quote + "-" + base, nil
}

// BaseCurrency returns the traded coin of a market code, or the code
// itself when it does not parse.
func BaseCurrency(code string) string {
	_, base, err := ParseMarket(code)
	if err != nil {
		return code
	}
	return base
}
