package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jask/timebill/internal/config"
	"github.com/jask/timebill/internal/database"
	"github.com/jask/timebill/internal/database/repository"
	"github.com/jask/timebill/internal/latex"
	"github.com/jask/timebill/internal/report"
	"github.com/jask/timebill/internal/service"
	"github.com/jask/timebill/internal/timew"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
)

func openLedger(cfg config.Config) (*sql.DB, error) {
	db, err := database.OpenLedger(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.Database.Path, err)
	}
	return db, nil
}

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.ResolvePath(a.configPath)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newClientsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List configured clients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Clients) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no clients configured in %s\n", cfg.Path)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Clients(cfg))
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check timew, LaTeX and the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			failed := false
			status := func(ok bool, msg string) {
				if ok {
					fmt.Fprintln(out, okStyle.Render("ok   ")+msg)
					return
				}
				failed = true
				fmt.Fprintln(out, failStyle.Render("fail ")+msg)
			}

			tw := timew.NewClient(cfg.Timewarrior.Command, cfg.Timewarrior.Timeout)
			if v, err := tw.Version(ctx); err != nil {
				status(false, fmt.Sprintf("timewarrior: %v", err))
			} else {
				status(true, "timewarrior "+v)
			}

			compiler := latex.NewCompiler(cfg.Latex.Command, a.logger)
			status(compiler.Available(ctx), "latex command "+compiler.Command)

			if !cfg.Loaded {
				status(false, "config file not found at "+cfg.Path+" (run timebill init)")
			} else {
				status(true, "config "+cfg.Path)
			}
			problems := cfg.Validate()
			for _, p := range problems {
				status(false, p)
			}
			if len(problems) == 0 {
				status(true, fmt.Sprintf("configuration valid, %d client(s)", len(cfg.Clients)))
			}

			if failed {
				return errors.New("check failed")
			}
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		client string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List invoices recorded in the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return errors.New("ledger disabled (database.enabled is false)")
			}
			db, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := &service.InvoiceService{Config: cfg, Ledger: repository.NewInvoiceRepo(db), Logger: a.logger}
			records, err := svc.History(cmd.Context(), client, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.History(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "only this client")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows (0 for all)")
	return cmd
}

func newResetLedgerCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-ledger",
		Short: "Delete every recorded invoice from the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset the ledger without --yes")
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			db, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			m := &service.MaintenanceService{DB: db}
			if err := m.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ledger %s cleared\n", cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
