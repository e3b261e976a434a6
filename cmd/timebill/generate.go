package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jask/timebill/internal/config"
	"github.com/jask/timebill/internal/database/repository"
	"github.com/jask/timebill/internal/latex"
	"github.com/jask/timebill/internal/report"
	"github.com/jask/timebill/internal/service"
	"github.com/jask/timebill/internal/timew"
)

var errInvalidInvoice = errors.New("invoice failed validation")

type generateOpts struct {
	start        string
	end          string
	clients      []string
	output       string
	input        string
	format       string
	taxRate      string
	outputFormat string
	dryRun       bool
	noLedger     bool
}

func newGenerateCmd(a *app) *cobra.Command {
	o := &generateOpts{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build, validate and render invoices for a billing period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.start, "start-date", "", "first day of the period (YYYY-MM-DD)")
	f.StringVar(&o.end, "end-date", "", "last day of the period (YYYY-MM-DD)")
	f.StringSliceVar(&o.clients, "client", nil, "client id to invoice (repeatable)")
	f.StringVarP(&o.output, "output", "o", "", "output directory (default output.directory)")
	f.StringVar(&o.input, "input", "", "read an export from this file instead of running timew (- for stdin)")
	f.StringVar(&o.format, "format", string(timew.FormatJSON), "export format of --input: json or csv")
	f.StringVar(&o.taxRate, "tax-rate", "", "override defaults.tax_rate, e.g. 0.08")
	f.StringVar(&o.outputFormat, "output-format", "", "pdf, tex or both (default output.format)")
	f.BoolVar(&o.dryRun, "dry-run", false, "print the invoice without rendering or recording it")
	f.BoolVar(&o.noLedger, "no-ledger", false, "do not record the invoice in the ledger")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func (a *app) runGenerate(ctx context.Context, out io.Writer, o *generateOpts) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		fmt.Fprint(out, report.Findings(problems, nil))
		return fmt.Errorf("invalid configuration %s", cfg.Path)
	}
	if o.output != "" {
		cfg.Output.Directory = o.output
	}
	switch o.outputFormat {
	case "":
	case "pdf", "tex", "both":
		cfg.Output.Format = o.outputFormat
	default:
		return fmt.Errorf("--output-format %q: want pdf, tex or both", o.outputFormat)
	}

	reqs, err := o.requests()
	if err != nil {
		return err
	}

	var ledger *repository.InvoiceRepo
	if cfg.Database.Enabled && !o.noLedger && !o.dryRun {
		db, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		ledger = repository.NewInvoiceRepo(db)
	}

	exporter := timew.NewClient(cfg.Timewarrior.Command, cfg.Timewarrior.Timeout)
	svc, err := service.NewInvoiceService(cfg, exporter, ledger, a.logger)
	if err != nil {
		return err
	}

	results, runErr := a.build(ctx, svc, o, reqs)

	var renderer *latex.Renderer
	if !o.dryRun {
		if renderer, err = latex.NewRenderer(cfg.Latex.TemplatePath); err != nil {
			return err
		}
	}
	compiler := latex.NewCompiler(cfg.Latex.Command, a.logger)

	var errs *multierror.Error
	if runErr != nil {
		errs = multierror.Append(errs, runErr)
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		fmt.Fprintln(out, report.Summary(res.Invoice))
		fmt.Fprint(out, report.Findings(res.Problems, res.Warnings))
		if !res.Valid() {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", res.Invoice.Client.ID, errInvalidInvoice))
			continue
		}
		if res.Reissued {
			fmt.Fprintf(out, "note: %s was already recorded; ledger entry refreshed\n", res.Invoice.Number)
		}
		if o.dryRun {
			continue
		}
		path, err := a.render(ctx, cfg, renderer, compiler, res)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", res.Invoice.Number, err))
			continue
		}
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	return errs.ErrorOrNil()
}

func (o *generateOpts) requests() ([]service.GenerateRequest, error) {
	var rate *decimal.Decimal
	if s := strings.TrimSpace(o.taxRate); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("--tax-rate %q: %w", s, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("--tax-rate %q: must not be negative", s)
		}
		rate = &d
	}
	reqs := make([]service.GenerateRequest, 0, len(o.clients))
	for _, c := range o.clients {
		reqs = append(reqs, service.GenerateRequest{
			ClientID:   strings.TrimSpace(c),
			Start:      o.start,
			End:        o.end,
			TaxRate:    rate,
			SkipLedger: o.noLedger || o.dryRun,
		})
	}
	return reqs, nil
}

// build runs the pipeline for every request, reading a saved export when
// --input is set and asking timew otherwise.
func (a *app) build(ctx context.Context, svc *service.InvoiceService, o *generateOpts, reqs []service.GenerateRequest) ([]*service.Result, error) {
	if o.input == "" {
		if len(reqs) == 1 {
			res, err := svc.Generate(ctx, reqs[0])
			return []*service.Result{res}, err
		}
		return svc.GenerateAll(ctx, reqs)
	}

	format, err := timew.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	raw, err := readInput(o.input)
	if err != nil {
		return nil, err
	}
	results := make([]*service.Result, len(reqs))
	var errs *multierror.Error
	for i, req := range reqs {
		res, err := svc.BuildFromExport(ctx, req, raw, format)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("client %s: %w", req.ClientID, err))
			continue
		}
		results[i] = res
	}
	return results, errs.ErrorOrNil()
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	return string(b), nil
}

// render writes the LaTeX source and/or the compiled PDF according to
// output.format and returns the primary artifact path.
func (a *app) render(ctx context.Context, cfg config.Config, r *latex.Renderer, c *latex.Compiler, res *service.Result) (string, error) {
	inv := res.Invoice
	source, err := r.Render(inv)
	if err != nil {
		return "", err
	}
	pdfPath := latex.OutputPath(cfg.Output.Directory, inv.Client.ID, inv.Number, inv.PeriodStart)

	switch cfg.Output.Format {
	case "tex":
		texPath := latex.SourcePath(pdfPath)
		return texPath, latex.WriteSource(texPath, source)
	case "both":
		if err := latex.WriteSource(latex.SourcePath(pdfPath), source); err != nil {
			return "", err
		}
	}

	if err := c.Compile(ctx, source, pdfPath); err != nil {
		var ce *latex.CompilationError
		if errors.As(err, &ce) && ce.Output != "" {
			a.logger.Debug("latex output", "log", ce.Output)
		}
		return "", err
	}
	return pdfPath, nil
}
