package billing

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Address is a postal address printed on an invoice.
type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// Lines returns the non-empty address lines in print order.
func (a Address) Lines() []string {
	cityLine := strings.TrimSpace(strings.TrimSpace(a.City+", "+a.State) + " " + a.ZipCode)
	cityLine = strings.Trim(cityLine, ", ")
	var out []string
	for _, l := range []string{a.Street, cityLine, a.Country} {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Biller is the party issuing the invoice.
type Biller struct {
	Name    string
	Address Address
	Email   string
	Phone   string
	TaxID   string
	Website string
}

// Client is the party being invoiced.
type Client struct {
	ID      string
	Name    string
	Prefix  string
	Address Address
	Email   string
	Phone   string
	TaxID   string
}

// LineItem is one priced (project, task) group. Amount is derived from
// Hours and Rate by NewLineItem; it is stored so that a recorded invoice can
// be re-checked by Validate.
type LineItem struct {
	Description string
	Hours       decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal
	Project     string
	Task        string
	Tags        []string
}

func NewLineItem(description, project, task string, hours, rate decimal.Decimal, tags []string) LineItem {
	return LineItem{
		Description: description,
		Hours:       hours,
		Rate:        rate,
		Amount:      hours.Mul(rate),
		Project:     project,
		Task:        task,
		Tags:        slices.Clone(tags),
	}
}

// Invoice is the terminal value of a billing run. Totals are computed by
// NewInvoice; any change goes through a constructor that returns a new value.
type Invoice struct {
	Number      string
	IssueDate   time.Time
	DueDate     time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	Biller      Biller
	Client      Client
	LineItems   []LineItem

	TaxRate   decimal.Decimal
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal

	PaymentTerms        string
	PaymentInstructions string
	Notes               string
	TermsAndConditions  string
}

// InvoiceParams holds everything an Invoice is built from except the totals.
type InvoiceParams struct {
	Number      string
	IssueDate   time.Time
	DueDate     time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	Biller      Biller
	Client      Client
	LineItems   []LineItem
	TaxRate     decimal.Decimal

	PaymentTerms        string
	PaymentInstructions string
	Notes               string
	TermsAndConditions  string
}

// NewInvoice copies the line items and computes subtotal, tax and total.
func NewInvoice(p InvoiceParams) Invoice {
	items := make([]LineItem, len(p.LineItems))
	for i, it := range p.LineItems {
		it.Tags = slices.Clone(it.Tags)
		items[i] = it
	}
	subtotal := Subtotal(items)
	tax := Tax(subtotal, p.TaxRate)
	return Invoice{
		Number:              p.Number,
		IssueDate:           p.IssueDate,
		DueDate:             p.DueDate,
		PeriodStart:         p.PeriodStart,
		PeriodEnd:           p.PeriodEnd,
		Biller:              p.Biller,
		Client:              p.Client,
		LineItems:           items,
		TaxRate:             p.TaxRate,
		Subtotal:            subtotal,
		TaxAmount:           tax,
		Total:               Total(subtotal, tax),
		PaymentTerms:        p.PaymentTerms,
		PaymentInstructions: p.PaymentInstructions,
		Notes:               p.Notes,
		TermsAndConditions:  p.TermsAndConditions,
	}
}

// Params returns the inputs inv was built from.
func (inv Invoice) Params() InvoiceParams {
	return InvoiceParams{
		Number:              inv.Number,
		IssueDate:           inv.IssueDate,
		DueDate:             inv.DueDate,
		PeriodStart:         inv.PeriodStart,
		PeriodEnd:           inv.PeriodEnd,
		Biller:              inv.Biller,
		Client:              inv.Client,
		LineItems:           inv.LineItems,
		TaxRate:             inv.TaxRate,
		PaymentTerms:        inv.PaymentTerms,
		PaymentInstructions: inv.PaymentInstructions,
		Notes:               inv.Notes,
		TermsAndConditions:  inv.TermsAndConditions,
	}
}

// WithTaxRate returns a recomputed copy of inv using rate.
func (inv Invoice) WithTaxRate(rate decimal.Decimal) Invoice {
	p := inv.Params()
	p.TaxRate = rate
	return NewInvoice(p)
}

// TotalHours sums the hours of every line item.
func (inv Invoice) TotalHours() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.LineItems {
		total = total.Add(it.Hours)
	}
	return total
}

// Projects returns the distinct line item projects, sorted.
func (inv Invoice) Projects() []string {
	seen := make(map[string]struct{}, len(inv.LineItems))
	var out []string
	for _, it := range inv.LineItems {
		if _, ok := seen[it.Project]; ok {
			continue
		}
		seen[it.Project] = struct{}{}
		out = append(out, it.Project)
	}
	sort.Strings(out)
	return out
}
