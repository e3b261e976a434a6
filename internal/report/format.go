package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Currency formats an amount as US dollars with thousands grouping,
// e.g. $1,234.50.
func Currency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + printer.Sprintf("$%.2f", d.Round(2).InexactFloat64())
}

// Hours formats a decimal hour count with two places.
func Hours(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// Percent renders a fractional rate such as 0.08 as 8%.
func Percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String() + "%"
}
