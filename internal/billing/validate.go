package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

// ValidationFailure lists every problem found with an invoice. An empty
// failure means the invoice is valid. It is returned, never raised.
type ValidationFailure []string

// Err folds the messages into a single error, or nil when there are none.
func (f ValidationFailure) Err() error {
	var result *multierror.Error
	for _, msg := range f {
		result = multierror.Append(result, errors.New(msg))
	}
	return result.ErrorOrNil()
}

func (f ValidationFailure) String() string {
	return strings.Join(f, "; ")
}

// Validate checks required fields and recomputes the totals of inv.
func Validate(inv Invoice) ValidationFailure {
	var problems ValidationFailure

	if strings.TrimSpace(inv.Number) == "" {
		problems = append(problems, "Invoice number is required")
	}
	if strings.TrimSpace(inv.Biller.Name) == "" {
		problems = append(problems, "Biller name is required")
	}
	if strings.TrimSpace(inv.Client.Name) == "" {
		problems = append(problems, "Client name is required")
	}
	if len(inv.LineItems) == 0 {
		problems = append(problems, "At least one billable item is required")
	}
	if inv.TaxRate.IsNegative() {
		problems = append(problems, fmt.Sprintf("Tax rate must not be negative, got %s", inv.TaxRate))
	}

	for i, it := range inv.LineItems {
		if msg, bad := amountMismatch(it); bad {
			problems = append(problems, fmt.Sprintf("Item %d: %s", i+1, msg))
		}
	}

	if want := Subtotal(inv.LineItems); outside(want, inv.Subtotal) {
		problems = append(problems, fmt.Sprintf("Subtotal calculation error: expected %s, got %s", want, inv.Subtotal))
	}
	if want := Tax(inv.Subtotal, inv.TaxRate); outside(want, inv.TaxAmount) {
		problems = append(problems, fmt.Sprintf("Tax calculation error: expected %s, got %s", want.StringFixed(2), inv.TaxAmount))
	}
	if want := Total(inv.Subtotal, inv.TaxAmount); outside(want, inv.Total) {
		problems = append(problems, fmt.Sprintf("Total calculation error: expected %s, got %s", want.StringFixed(2), inv.Total))
	}

	return problems
}

// ValidateLineItem applies the stricter per-item checks: a description,
// positive hours and rate, and a consistent amount.
func ValidateLineItem(it LineItem) ValidationFailure {
	var problems ValidationFailure
	if strings.TrimSpace(it.Description) == "" {
		problems = append(problems, "Item description is required")
	}
	if !it.Hours.IsPositive() {
		problems = append(problems, "Hours worked must be greater than 0")
	}
	if !it.Rate.IsPositive() {
		problems = append(problems, "Hourly rate must be greater than 0")
	}
	if msg, bad := amountMismatch(it); bad {
		problems = append(problems, msg)
	}
	return problems
}

func amountMismatch(it LineItem) (string, bool) {
	want := it.Hours.Mul(it.Rate)
	if !outside(want, it.Amount) {
		return "", false
	}
	return fmt.Sprintf("Item amount calculation error: expected %s, got %s", want, it.Amount), true
}

func outside(want, got decimal.Decimal) bool {
	return want.Sub(got).Abs().GreaterThan(Tolerance)
}
