package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/timebill/internal/billing"
	"github.com/jask/timebill/internal/config"
	"github.com/jask/timebill/internal/database"
	"github.com/jask/timebill/internal/database/repository"
	"github.com/jask/timebill/internal/testdata"
	"github.com/jask/timebill/internal/timew"
)

const januaryExport = `[
	{"id": 3, "start": "20240115T090000Z", "end": "20240115T120000Z", "tags": ["madrona", "development"]},
	{"id": 2, "start": "20240115T130000Z", "end": "20240115T170000Z", "tags": ["madrona", "testing"]},
	{"id": 1, "start": "20240116T090000Z", "end": "20240116T100000Z", "tags": ["acme", "design"], "annotation": "Logo"}
]`

type fakeExporter struct {
	raw   string
	err   error
	calls atomic.Int32
}

func (f *fakeExporter) Export(_ context.Context, _, _ string) (string, error) {
	f.calls.Add(1)
	return f.raw, f.err
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Biller.Name = "Jane Contractor"
	cfg.HourlyRates = map[string]float64{"default": 120, "development": 150, "testing": 100}
	cfg.Clients = map[string]config.ClientConfig{
		"madrona": {Name: "Madrona Labs", Prefix: "madrona", Aliases: []string{"mdl"}},
		"acme":    {Name: "Acme Corp", Prefix: "acme", Rates: map[string]float64{"design": 200}},
	}
	return cfg
}

type fixture struct {
	svc      *InvoiceService
	exporter *fakeExporter
	ledger   *repository.InvoiceRepo
}

func setupService(t *testing.T, raw string) fixture {
	t.Helper()
	db, err := database.OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exp := &fakeExporter{raw: raw}
	ledger := repository.NewInvoiceRepo(db)
	svc, err := NewInvoiceService(testConfig(), exp, ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	svc.Now = func() time.Time { return time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC) }
	return fixture{svc: svc, exporter: exp, ledger: ledger}
}

func january(client string) GenerateRequest {
	return GenerateRequest{ClientID: client, Start: "2024-01-01", End: "2024-01-31"}
}

func TestGenerate_Madrona(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupService(t, januaryExport)

	res, err := f.svc.Generate(ctx, january("madrona"))
	require.NoError(t, err)
	require.EqualValues(t, 1, f.exporter.calls.Load())
	require.True(t, res.Valid(), res.Problems.String())
	require.Empty(t, res.Warnings)
	require.Equal(t, 2, res.Entries)

	inv := res.Invoice
	require.Equal(t, "madrona-5c774bfb", inv.Number)
	require.True(t, billing.VerifyNumber(inv.Number, billing.NumberInputs{
		Prefix: "madrona", PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
		TotalHours: decimal.NewFromInt(7), Projects: []string{"madrona"},
		ReferenceTime: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	}))
	require.Len(t, inv.LineItems, 2)
	require.Equal(t, "450.00", inv.LineItems[0].Amount.StringFixed(2))
	require.Equal(t, "400.00", inv.LineItems[1].Amount.StringFixed(2))
	require.Equal(t, "850.00", inv.Subtotal.StringFixed(2))
	require.Equal(t, "850.00", inv.Total.StringFixed(2))

	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), inv.IssueDate)
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), inv.DueDate)
	require.Equal(t, "Jane Contractor", inv.Biller.Name)
	require.Equal(t, "Madrona Labs", inv.Client.Name)

	require.True(t, res.Recorded)
	require.False(t, res.Reissued)
	rec, err := f.ledger.Get(ctx, inv.Number)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "madrona", rec.ClientID)
	require.Len(t, rec.Items, 2)
}

func TestGenerate_RerunReproducesNumber(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupService(t, januaryExport)

	first, err := f.svc.Generate(ctx, january("madrona"))
	require.NoError(t, err)

	f.svc.Now = func() time.Time { return time.Date(2024, 2, 9, 8, 0, 0, 0, time.UTC) }
	second, err := f.svc.Generate(ctx, january("madrona"))
	require.NoError(t, err)

	require.Equal(t, first.Invoice.Number, second.Invoice.Number)
	require.True(t, second.Reissued)

	rec, err := f.ledger.Get(ctx, first.Invoice.Number)
	require.NoError(t, err)
	require.Equal(t, 2, rec.IssueCount)
}

func TestGenerate_TaxOverride(t *testing.T) {
	t.Parallel()
	f := setupService(t, januaryExport)

	rate := decimal.RequireFromString("0.08")
	req := january("madrona")
	req.TaxRate = &rate
	req.SkipLedger = true

	res, err := f.svc.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "68.00", res.Invoice.TaxAmount.StringFixed(2))
	require.Equal(t, "918.00", res.Invoice.Total.StringFixed(2))
	require.False(t, res.Recorded)

	history, err := f.svc.History(context.Background(), "madrona", 0)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestBuildFromExport_ClientRatesAndAliases(t *testing.T) {
	t.Parallel()
	f := setupService(t, "")

	res, err := f.svc.BuildFromExport(context.Background(), january("acme"), januaryExport, timew.FormatJSON)
	require.NoError(t, err)
	require.Len(t, res.Invoice.LineItems, 1)
	require.Equal(t, "Logo", res.Invoice.LineItems[0].Description)
	require.Equal(t, "200", res.Invoice.LineItems[0].Rate.String())

	raw := "start,end,tags\n" +
		"2024-01-10T09:00:00Z,2024-01-10T11:00:00Z,\"web,mdl,development\"\n" +
		"2024-01-11T09:00:00Z,2024-01-11T10:00:00Z,\"acme,design\"\n"
	res, err = f.svc.BuildFromExport(context.Background(), january("madrona"), raw, timew.FormatCSV)
	require.NoError(t, err)
	require.Equal(t, 1, res.Entries)
	require.Equal(t, "web", res.Invoice.LineItems[0].Project)
	require.Equal(t, "development", res.Invoice.LineItems[0].Task)
}

func TestBuildFromExport_ZeroHourWarning(t *testing.T) {
	t.Parallel()
	f := setupService(t, "")

	raw := `[
		{"start": "2024-01-15T09:00:00Z", "end": "2024-01-15T10:00:00Z", "tags": ["madrona", "development"]},
		{"start": "2024-01-20T09:00:00Z", "tags": ["madrona", "support"]}
	]`
	res, err := f.svc.BuildFromExport(context.Background(), january("madrona"), raw, timew.FormatJSON)
	require.NoError(t, err)
	require.True(t, res.Valid())
	require.Len(t, res.Invoice.LineItems, 2)
	require.Equal(t, []string{"item 2 (madrona/support): Hours worked must be greater than 0"}, res.Warnings)
}

func TestBuildFromExport_Errors(t *testing.T) {
	t.Parallel()
	f := setupService(t, "")
	ctx := context.Background()

	_, err := f.svc.BuildFromExport(ctx, january("madrona"), "not json", timew.FormatJSON)
	require.ErrorIs(t, err, timew.ErrMalformedExport)

	_, err = f.svc.BuildFromExport(ctx, january("madrona"), "[]", timew.Format("xml"))
	require.ErrorIs(t, err, timew.ErrUnsupportedFormat)

	_, err = f.svc.BuildFromExport(ctx, january("madrona"), "[]", timew.FormatJSON)
	require.ErrorIs(t, err, ErrNoEntries)

	_, err = f.svc.BuildFromExport(ctx, january("madrona"),
		`[{"start": "2024-01-15T09:00:00Z", "end": "2024-01-15T10:00:00Z", "tags": ["globex"]}]`, timew.FormatJSON)
	require.ErrorIs(t, err, ErrNoClientEntries)

	_, err = f.svc.BuildFromExport(ctx, GenerateRequest{ClientID: "madrona", Start: "2024-02-01", End: "2024-01-01"}, "[]", timew.FormatJSON)
	require.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = f.svc.BuildFromExport(ctx, GenerateRequest{ClientID: "madrona", Start: "01/02/2024", End: "2024-01-31"}, "[]", timew.FormatJSON)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestGenerate_UnknownClient(t *testing.T) {
	t.Parallel()
	f := setupService(t, januaryExport)

	_, err := f.svc.Generate(context.Background(), january("madrna"))
	require.ErrorIs(t, err, ErrUnknownClient)

	var unknown *UnknownClientError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "madrona", unknown.Suggestion)
	require.Equal(t, []string{"acme", "madrona"}, unknown.Known)
	require.Contains(t, err.Error(), `did you mean "madrona"?`)
	require.Zero(t, f.exporter.calls.Load(), "export must not run for an unknown client")
}

func TestGenerate_ExportFailure(t *testing.T) {
	t.Parallel()
	f := setupService(t, "")
	f.exporter.err = timew.ErrTimewNotFound

	_, err := f.svc.Generate(context.Background(), january("madrona"))
	require.ErrorIs(t, err, timew.ErrTimewNotFound)
}

func TestGenerateAll(t *testing.T) {
	t.Parallel()
	f := setupService(t, januaryExport)
	f.svc.Concurrency = 2

	results, err := f.svc.GenerateAll(context.Background(), []GenerateRequest{
		january("madrona"), january("globex"), january("acme"),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnknownClient)
	require.Contains(t, err.Error(), "client globex")

	require.Len(t, results, 3)
	require.NotNil(t, results[0])
	require.Nil(t, results[1])
	require.NotNil(t, results[2])
	require.Equal(t, "madrona-5c774bfb", results[0].Invoice.Number)
	require.Equal(t, "Acme Corp", results[2].Invoice.Client.Name)

	history, err := f.svc.History(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestMaintenanceReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc, err := NewInvoiceService(testConfig(), &fakeExporter{raw: januaryExport}, repository.NewInvoiceRepo(db), nil)
	require.NoError(t, err)
	_, err = svc.Generate(ctx, january("madrona"))
	require.NoError(t, err)

	require.NoError(t, (&MaintenanceService{DB: db}).Reset(ctx))
	history, err := svc.History(ctx, "", 0)
	require.NoError(t, err)
	require.Empty(t, history)

	require.Error(t, (&MaintenanceService{}).Reset(ctx))
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	known := []string{"acme", "goodhertz", "madrona"}
	require.Equal(t, "madrona", suggest("madrna", known))
	require.Equal(t, "goodhertz", suggest("GoodHerz", known))
	require.Empty(t, suggest("zzz", known))
	require.Empty(t, suggest("x", nil))
}

func TestNewInvoiceService_RequiresDefaultRate(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	delete(cfg.HourlyRates, "default")
	_, err := NewInvoiceService(cfg, nil, nil, nil)
	require.ErrorIs(t, err, config.ErrNoDefaultRate)
}

func TestBuildFromExport_GeneratedExport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	intervals := testdata.Generate(testdata.Options{Seed: 11, Count: 80, Clients: []string{"madrona", "acme"}})
	raw, err := testdata.ExportJSON(intervals)
	require.NoError(t, err)
	f := setupService(t, raw)

	var elapsed time.Duration
	for _, iv := range intervals {
		elapsed += iv.Elapsed()
	}

	entries := 0
	hours := decimal.Zero
	for _, client := range []string{"madrona", "acme"} {
		req := january(client)
		req.SkipLedger = true
		res, err := f.svc.BuildFromExport(ctx, req, raw, timew.FormatJSON)
		require.NoError(t, err)
		require.True(t, res.Valid(), res.Problems.String())
		require.True(t, res.Invoice.Subtotal.Equal(billing.Subtotal(res.Invoice.LineItems)))
		require.False(t, res.Recorded)
		entries += res.Entries
		hours = hours.Add(res.Invoice.TotalHours())
	}
	require.Equal(t, len(intervals), entries, "every generated entry belongs to exactly one client")
	require.True(t, billing.Hours(elapsed).Equal(hours))
}

const mixedCaseYAML = `
biller:
  name: Jane Contractor
  address:
    street: 1 Main St
    city: Springfield
    state: IL
    zip_code: "62701"
clients:
  Goodhertz:
    name: Goodhertz Inc
    prefix: goodhertz
    rates:
      Design: 220
hourly_rates:
  default: 120
  Development: 175
`

func TestBuildFromExport_MixedCaseConfigKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mixedCaseYAML), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	rates, err := cfg.RateTable()
	require.NoError(t, err)
	require.Equal(t, "175", rates.Resolve("other", "Development").String())
	require.Equal(t, "220", rates.Resolve("Goodhertz", "Design").String())

	svc, err := NewInvoiceService(cfg, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	svc.Now = func() time.Time { return time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC) }

	raw := `[
	{"id": 2, "start": "20240110T090000Z", "end": "20240110T110000Z", "tags": ["Goodhertz", "Design"]},
	{"id": 1, "start": "20240111T090000Z", "end": "20240111T100000Z", "tags": ["client:GOODHERTZ", "Development"]}
]`
	req := january("Goodhertz")
	req.SkipLedger = true
	res, err := svc.BuildFromExport(context.Background(), req, raw, timew.FormatJSON)
	require.NoError(t, err)
	require.Equal(t, 2, res.Entries)
	require.True(t, res.Valid(), res.Problems.String())

	rateByTask := map[string]string{}
	for _, it := range res.Invoice.LineItems {
		rateByTask[it.Task] = it.Rate.String()
	}
	require.Equal(t, map[string]string{"Design": "220", "Development": "175"}, rateByTask)
}
