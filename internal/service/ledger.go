package service

import (
	"context"

	"github.com/jask/timebill/internal/billing"
	"github.com/jask/timebill/internal/database/repository"
)

func toRecord(inv billing.Invoice) repository.InvoiceRecord {
	rec := repository.InvoiceRecord{
		Number:      inv.Number,
		ClientID:    inv.Client.ID,
		PeriodStart: inv.PeriodStart,
		PeriodEnd:   inv.PeriodEnd,
		IssueDate:   inv.IssueDate,
		DueDate:     inv.DueDate,
		TotalHours:  inv.TotalHours(),
		TaxRate:     inv.TaxRate,
		Subtotal:    inv.Subtotal,
		TaxAmount:   inv.TaxAmount,
		Total:       inv.Total,
	}
	for i, it := range inv.LineItems {
		rec.Items = append(rec.Items, repository.InvoiceItem{
			InvoiceNumber: inv.Number,
			Position:      i,
			Project:       it.Project,
			Task:          it.Task,
			Description:   it.Description,
			Hours:         it.Hours,
			Rate:          it.Rate,
			Amount:        it.Amount,
			Tags:          it.Tags,
		})
	}
	return rec
}

// History lists recorded invoices for a client, or all clients when
// clientID is empty.
func (s *InvoiceService) History(ctx context.Context, clientID string, limit int) ([]repository.InvoiceRecord, error) {
	if s.Ledger == nil {
		return nil, nil
	}
	return s.Ledger.List(ctx, repository.InvoiceFilters{ClientID: clientID, Limit: limit})
}
