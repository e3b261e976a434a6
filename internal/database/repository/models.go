package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRecord represents an invoices row.
type InvoiceRecord struct {
	Number      string
	ClientID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	IssueDate   time.Time
	DueDate     time.Time
	TotalHours  decimal.Decimal
	TaxRate     decimal.Decimal
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	// IssueCount is how many times this number has been recorded.
	IssueCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Items      []InvoiceItem
}

// InvoiceItem represents an invoice_items row.
type InvoiceItem struct {
	ID            string
	InvoiceNumber string
	Position      int
	Project       string
	Task          string
	Description   string
	Hours         decimal.Decimal
	Rate          decimal.Decimal
	Amount        decimal.Decimal
	Tags          []string
}
