package billing

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the absolute difference Validate accepts between a stored
// amount and its recomputed value.
var Tolerance = decimal.RequireFromString("0.01")

const defaultNetDays = 30

// Subtotal sums the line item amounts. No rounding is applied.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// Tax rounds subtotal*rate half away from zero to cents.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}

// Total rounds subtotal+tax half away from zero to cents.
func Total(subtotal, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Round(2)
}

// DueDate applies payment terms to the issue date. "Net N" adds N days and
// "Due on receipt" is the issue date; anything else is net 30.
func DueDate(issue time.Time, terms string) time.Time {
	t := strings.ToLower(strings.TrimSpace(terms))
	if t == "due on receipt" {
		return issue
	}
	if rest, ok := strings.CutPrefix(t, "net"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && n >= 0 {
			return issue.AddDate(0, 0, n)
		}
	}
	return issue.AddDate(0, 0, defaultNetDays)
}
