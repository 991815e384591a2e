// Package utils provides shared formatting and market helpers.
package utils

import (
	"fmt"
	"strings"
)

// FormatKRW formats a Korean won amount with thousands grouping and no
// decimals below one million won.
func FormatKRW(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	var result string
	if amount >= 1_000_000 {
		result = "₩" + groupThousands(fmt.Sprintf("%.0f", amount))
	} else {
		str := fmt.Sprintf("%.2f", amount)
		parts := strings.Split(str, ".")
		result = "₩" + groupThousands(parts[0]) + "." + parts[1]
	}
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	rem := n % 3
	if rem > 0 {
		b.WriteString(s[:rem])
	}
	for i := rem; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with an explicit sign on gains.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats a signed won amount with an explicit plus on
// gains.
func FormatPnL(pnl float64) string {
	formatted := FormatKRW(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatQuantity formats a coin quantity, trimming trailing zeros.
func FormatQuantity(qty float64) string {
	s := fmt.Sprintf("%.8f", qty)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
