package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jask/timebill/internal/database"
)

const dateLayout = "2006-01-02"

// InvoiceFilters defines list filters.
type InvoiceFilters struct {
	ClientID string
	// Since keeps invoices whose period starts on or after this date; zero = no filter.
	Since time.Time
	Limit int
}

// InvoiceRepo is the ledger of issued invoices.
type InvoiceRepo struct {
	db *sql.DB
}

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

// ItemID derives a stable id for the line item at position within an invoice.
func ItemID(number string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", number, position))).String()
}

func (r *InvoiceRepo) Exists(ctx context.Context, number string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE number = ?`, number).Scan(&n)
	return n > 0, err
}

// Upsert records inv and replaces its items. It reports whether the number
// was already present.
func (r *InvoiceRepo) Upsert(ctx context.Context, inv InvoiceRecord) (reissued bool, err error) {
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE number = ?`, inv.Number).Scan(&n); err != nil {
			return err
		}
		reissued = n > 0
		now := database.Now()

		_, err := tx.ExecContext(ctx, `
		INSERT INTO invoices(
		 number, client_id, period_start, period_end, issue_date, due_date,
		 total_hours, tax_rate, subtotal, tax_amount, total, issue_count, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
		 client_id=excluded.client_id,
		 period_start=excluded.period_start,
		 period_end=excluded.period_end,
		 issue_date=excluded.issue_date,
		 due_date=excluded.due_date,
		 total_hours=excluded.total_hours,
		 tax_rate=excluded.tax_rate,
		 subtotal=excluded.subtotal,
		 tax_amount=excluded.tax_amount,
		 total=excluded.total,
		 issue_count=invoices.issue_count + 1,
		 updated_at=excluded.updated_at;
		`,
			inv.Number, inv.ClientID,
			inv.PeriodStart.Format(dateLayout), inv.PeriodEnd.Format(dateLayout),
			inv.IssueDate.Format(dateLayout), inv.DueDate.Format(dateLayout),
			inv.TotalHours, inv.TaxRate, inv.Subtotal, inv.TaxAmount, inv.Total, now, now)
		if err != nil {
			return fmt.Errorf("upsert invoice %s: %w", inv.Number, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_number = ?`, inv.Number); err != nil {
			return err
		}
		for i, it := range inv.Items {
			tags, err := json.Marshal(nonNil(it.Tags))
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_items(id, invoice_number, position, project, task, description, hours, rate, amount, tags)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
			`, ItemID(inv.Number, i), inv.Number, i, it.Project, it.Task, it.Description,
				it.Hours, it.Rate, it.Amount, string(tags))
			if err != nil {
				return fmt.Errorf("insert item %d of %s: %w", i, inv.Number, err)
			}
		}
		return nil
	})
	return reissued, err
}

// Get returns the invoice with its items, or nil when it is not recorded.
func (r *InvoiceRepo) Get(ctx context.Context, number string) (*InvoiceRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE number = ?`, number)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := r.fetchItems(ctx, number)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return &inv, nil
}

// List returns recorded invoices without items, newest period first.
func (r *InvoiceRepo) List(ctx context.Context, f InvoiceFilters) ([]InvoiceRecord, error) {
	var where []string
	var args []interface{}

	if f.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if !f.Since.IsZero() {
		where = append(where, "period_start >= ?")
		args = append(args, f.Since.Format(dateLayout))
	}

	query := "SELECT " + invoiceColumns + " FROM invoices"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start DESC, number"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceRecord
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *InvoiceRepo) Delete(ctx context.Context, number string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE number = ?`, number)
	return err
}

func (r *InvoiceRepo) fetchItems(ctx context.Context, number string) ([]InvoiceItem, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, invoice_number, position, project, task, description, hours, rate, amount, tags
	FROM invoice_items WHERE invoice_number = ? ORDER BY position`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		var tags string
		if err := rows.Scan(&it.ID, &it.InvoiceNumber, &it.Position, &it.Project, &it.Task,
			&it.Description, &it.Hours, &it.Rate, &it.Amount, &tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
			return nil, fmt.Errorf("item %s tags: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const invoiceColumns = `number, client_id, period_start, period_end, issue_date, due_date,
 total_hours, tax_rate, subtotal, tax_amount, total, issue_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row scanner) (InvoiceRecord, error) {
	var inv InvoiceRecord
	var start, end, issue, due string
	if err := row.Scan(&inv.Number, &inv.ClientID, &start, &end, &issue, &due,
		&inv.TotalHours, &inv.TaxRate, &inv.Subtotal, &inv.TaxAmount, &inv.Total,
		&inv.IssueCount, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return InvoiceRecord{}, err
	}
	for _, f := range []struct {
		raw string
		dst *time.Time
	}{{start, &inv.PeriodStart}, {end, &inv.PeriodEnd}, {issue, &inv.IssueDate}, {due, &inv.DueDate}} {
		t, err := time.Parse(dateLayout, f.raw)
		if err != nil {
			return InvoiceRecord{}, fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
		*f.dst = t
	}
	return inv, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
