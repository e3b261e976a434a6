package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/timebill/internal/billing"
	"github.com/jask/timebill/internal/config"
	"github.com/jask/timebill/internal/database/repository"
	"github.com/jask/timebill/internal/timew"
)

const dateLayout = "2006-01-02"

// Exporter fetches raw export text for a billing period.
type Exporter interface {
	Export(ctx context.Context, start, end string) (string, error)
}

// InvoiceService runs the billing pipeline: export, parse, filter by client,
// classify, aggregate, number, total, validate and record.
type InvoiceService struct {
	Config   config.Config
	Rates    billing.RateTable
	Exporter Exporter
	// Ledger records valid invoices; nil disables recording.
	Ledger *repository.InvoiceRepo
	Logger *slog.Logger
	Now    func() time.Time
	// Concurrency bounds GenerateAll; zero means 4.
	Concurrency int
}

// NewInvoiceService snapshots the config's rate table.
func NewInvoiceService(cfg config.Config, exporter Exporter, ledger *repository.InvoiceRepo, logger *slog.Logger) (*InvoiceService, error) {
	rates, err := cfg.RateTable()
	if err != nil {
		return nil, fmt.Errorf("rate table: %w", err)
	}
	return &InvoiceService{
		Config:   cfg,
		Rates:    rates,
		Exporter: exporter,
		Ledger:   ledger,
		Logger:   logger,
	}, nil
}

// GenerateRequest describes one invoice. Start and End are YYYY-MM-DD.
type GenerateRequest struct {
	ClientID string
	Start    string
	End      string
	// TaxRate overrides defaults.tax_rate when set.
	TaxRate    *decimal.Decimal
	SkipLedger bool
}

// Result is a built invoice plus everything the caller needs to decide
// whether to render it.
type Result struct {
	Invoice billing.Invoice
	// Problems are Validate failures; a non-empty list blocks recording.
	Problems billing.ValidationFailure
	// Warnings are per-item findings such as zero-hour line items.
	Warnings []string
	Entries  int
	Reissued bool
	Recorded bool
}

func (r *Result) Valid() bool { return len(r.Problems) == 0 }

func (s *InvoiceService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *InvoiceService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Generate exports the period from the time tracker and builds the invoice.
func (s *InvoiceService) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if s.Exporter == nil {
		return nil, ErrNoExporter
	}
	if _, err := s.client(req.ClientID); err != nil {
		return nil, err
	}
	if _, _, err := parsePeriod(req.Start, req.End); err != nil {
		return nil, err
	}

	s.logger().Debug("exporting time entries", "client", req.ClientID, "start", req.Start, "end", req.End)
	raw, err := s.Exporter.Export(ctx, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return s.BuildFromExport(ctx, req, raw, timew.FormatJSON)
}

// BuildFromExport builds the invoice from already exported text.
func (s *InvoiceService) BuildFromExport(ctx context.Context, req GenerateRequest, raw string, format timew.Format) (*Result, error) {
	client, err := s.client(req.ClientID)
	if err != nil {
		return nil, err
	}
	start, end, err := parsePeriod(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	intervals, err := timew.Parse(raw, format)
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		return nil, ErrNoEntries
	}

	classifier := billing.NewClassifier(s.Config.Aliases()...)
	entries := filterForClient(classifier.ClassifyAll(intervals), s.clientKeys(client.ID))
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoClientEntries, client.ID)
	}
	s.logger().Debug("classified entries", "client", client.ID, "total", len(intervals), "billed", len(entries))

	items := billing.Aggregate(entries, s.Rates.Resolve)

	inv := s.assemble(client, start, end, items, req.TaxRate)
	res := &Result{
		Invoice:  inv,
		Problems: billing.Validate(inv),
		Warnings: itemWarnings(inv.LineItems),
		Entries:  len(entries),
	}

	s.logger().Info("invoice built",
		"client", client.ID,
		"number", inv.Number,
		"items", len(inv.LineItems),
		"hours", inv.TotalHours().StringFixed(2),
		"total", inv.Total.StringFixed(2),
		"problems", len(res.Problems),
	)

	if !res.Valid() || req.SkipLedger || s.Ledger == nil {
		return res, nil
	}
	reissued, err := s.Ledger.Upsert(ctx, toRecord(inv))
	if err != nil {
		return nil, fmt.Errorf("record invoice %s: %w", inv.Number, err)
	}
	res.Recorded = true
	res.Reissued = reissued
	if reissued {
		s.logger().Info("invoice number already recorded; ledger entry refreshed", "number", inv.Number)
	}
	return res, nil
}

func (s *InvoiceService) assemble(client billing.Client, start, end time.Time, items []billing.LineItem, taxOverride *decimal.Decimal) billing.Invoice {
	now := s.now()

	hours := decimal.Zero
	for _, it := range items {
		hours = hours.Add(it.Hours)
	}
	draft := billing.Invoice{LineItems: items}

	number := billing.GenerateNumber(billing.NumberInputs{
		Prefix:        client.Prefix,
		PeriodStart:   start.Format(dateLayout),
		PeriodEnd:     end.Format(dateLayout),
		TotalHours:    hours,
		Projects:      draft.Projects(),
		ReferenceTime: billing.ReferenceTime(start, end, len(items) > 0, now),
	})

	issue := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	taxRate := s.Config.TaxRate()
	if taxOverride != nil {
		taxRate = *taxOverride
	}
	d := s.Config.Defaults
	return billing.NewInvoice(billing.InvoiceParams{
		Number:              number,
		IssueDate:           issue,
		DueDate:             billing.DueDate(issue, d.PaymentTerms),
		PeriodStart:         start,
		PeriodEnd:           end,
		Biller:              s.Config.BillerParty(),
		Client:              client,
		LineItems:           items,
		TaxRate:             taxRate,
		PaymentTerms:        d.PaymentTerms,
		PaymentInstructions: d.PaymentInstructions,
		Notes:               d.Notes,
		TermsAndConditions:  d.TermsAndConditions,
	})
}

func (s *InvoiceService) client(id string) (billing.Client, error) {
	client, ok := s.Config.ClientParty(id)
	if !ok {
		return billing.Client{}, newUnknownClientError(id, s.Config.ClientIDs())
	}
	return client, nil
}

// clientKeys are the lower-cased tag values that mark an entry as belonging
// to the client.
func (s *InvoiceService) clientKeys(id string) []string {
	keys := []string{strings.ToLower(id)}
	if cl, ok := s.Config.Client(id); ok {
		for _, a := range cl.Aliases {
			keys = append(keys, strings.ToLower(strings.TrimSpace(a)))
		}
	}
	return keys
}

// filterForClient keeps entries whose project or any tag is the client id
// or one of its aliases, ignoring case.
func filterForClient(entries []billing.Entry, keys []string) []billing.Entry {
	matches := func(v string) bool { return slices.Contains(keys, strings.ToLower(v)) }
	var out []billing.Entry
	for _, e := range entries {
		if matches(e.Project) || slices.ContainsFunc(e.Tags, matches) {
			out = append(out, e)
		}
	}
	return out
}

func itemWarnings(items []billing.LineItem) []string {
	var out []string
	for i, it := range items {
		for _, msg := range billing.ValidateLineItem(it) {
			out = append(out, fmt.Sprintf("item %d (%s/%s): %s", i+1, it.Project, it.Task, msg))
		}
	}
	return out
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(dateLayout, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date %q: want YYYY-MM-DD", ErrInvalidPeriod, start)
	}
	e, err := time.Parse(dateLayout, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date %q: want YYYY-MM-DD", ErrInvalidPeriod, end)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidPeriod, end, start)
	}
	return s, e, nil
}
