package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jask/timebill/internal/billing"
	"github.com/jask/timebill/internal/config"
	"github.com/jask/timebill/internal/database/repository"
)

const dateLayout = "2006-01-02"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// styleNumbers right-aligns the given columns.
func styleNumbers(cols ...int) table.StyleFunc {
	numeric := make(map[int]bool, len(cols))
	for _, c := range cols {
		numeric[c] = true
	}
	return func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case numeric[col]:
			return numberStyle
		default:
			return cellStyle
		}
	}
}

func field(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

// Summary renders an invoice for the terminal: header fields, the line item
// table and totals.
func Summary(inv billing.Invoice) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Invoice "+inv.Number) + "\n")
	b.WriteString(field("Client", inv.Client.Name) + "\n")
	b.WriteString(field("Period", inv.PeriodStart.Format(dateLayout)+" to "+inv.PeriodEnd.Format(dateLayout)) + "\n")
	b.WriteString(field("Issued", inv.IssueDate.Format(dateLayout)) + "  " + field("Due", inv.DueDate.Format(dateLayout)) + "\n")

	t := newTable("Project", "Task", "Description", "Hours", "Rate", "Amount").
		StyleFunc(styleNumbers(3, 4, 5))
	for _, it := range inv.LineItems {
		t.Row(it.Project, it.Task, it.Description, Hours(it.Hours), Currency(it.Rate), Currency(it.Amount))
	}
	b.WriteString(t.Render() + "\n")

	b.WriteString(field("Hours", Hours(inv.TotalHours())) + "\n")
	b.WriteString(field("Subtotal", Currency(inv.Subtotal)) + "\n")
	if inv.TaxRate.IsPositive() {
		b.WriteString(field("Tax ("+Percent(inv.TaxRate)+")", Currency(inv.TaxAmount)) + "\n")
	}
	b.WriteString(labelStyle.Render("Total: ") + totalStyle.Render(Currency(inv.Total)) + "\n")
	return b.String()
}

// Findings renders validation problems and item warnings, one per line.
func Findings(problems, warnings []string) string {
	var b strings.Builder
	for _, p := range problems {
		b.WriteString(errorStyle.Render("error: "+p) + "\n")
	}
	for _, w := range warnings {
		b.WriteString(warningStyle.Render("warning: "+w) + "\n")
	}
	return b.String()
}

// Clients lists configured clients with their aliases and rate overrides.
func Clients(cfg config.Config) string {
	t := newTable("ID", "Name", "Prefix", "Aliases", "Rates").StyleFunc(styleNumbers())
	for _, id := range cfg.ClientIDs() {
		cl, _ := cfg.Client(id)
		t.Row(id, cl.Name, cl.Prefix, strings.Join(cl.Aliases, ", "), formatRates(cl.Rates))
	}
	return t.Render()
}

func formatRates(rates map[string]float64) string {
	if len(rates) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(rates))
	for k := range rates {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strconv.FormatFloat(rates[k], 'f', -1, 64)))
	}
	return strings.Join(parts, ", ")
}

// History renders recorded invoices, newest period first as returned by the
// ledger.
func History(records []repository.InvoiceRecord) string {
	if len(records) == 0 {
		return labelStyle.Render("no invoices recorded")
	}
	t := newTable("Number", "Client", "Period", "Issued", "Hours", "Total", "Issues").
		StyleFunc(styleNumbers(4, 5, 6))
	for _, r := range records {
		t.Row(
			r.Number,
			r.ClientID,
			r.PeriodStart.Format(dateLayout)+" to "+r.PeriodEnd.Format(dateLayout),
			r.IssueDate.Format(dateLayout),
			Hours(r.TotalHours),
			Currency(r.Total),
			strconv.Itoa(r.IssueCount),
		)
	}
	return t.Render()
}
