package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tyemirov/taxpilot/internal/taxapi"
)

func newLedgerCommand() *cobra.Command {
	ledgerCmd := &cobra.Command{Use: "ledger", Short: "Bookkeeping summaries and exports"}
	ledgerCmd.AddCommand(
		newLedgerShowCommand(),
		newLedgerExportCommand(),
		newLedgerDashboardCommand(),
		newLedgerCategoriesCommand(),
	)
	return ledgerCmd
}

func registerPeriodFlags(flags *pflag.FlagSet, query *taxapi.LedgerQuery) {
	flags.IntVar(&query.Year, "year", time.Now().Year(), "Ledger year")
	flags.IntVar(&query.Month, "month", 0, "Ledger month (1-12); omit for the whole year")
}

func newLedgerShowCommand() *cobra.Command {
	var query taxapi.LedgerQuery
	command := &cobra.Command{
		Use:   "show",
		Short: "Show the simplified ledger for a period",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			ledger, err := app.services.Ledger.Get(command.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, ledger)
		}),
	}
	registerPeriodFlags(command.Flags(), &query)
	return command
}

func newLedgerExportCommand() *cobra.Command {
	var query taxapi.LedgerQuery
	var format, outputPath string
	command := &cobra.Command{
		Use:   "export",
		Short: "Download the ledger as Excel or CSV",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			exported, err := app.services.Ledger.Export(command.Context(), query, taxapi.ExportFormat(format))
			if err != nil {
				return err
			}
			target := outputPath
			if target == "" {
				target = filepath.Base(exported.Filename)
			}
			if err := os.WriteFile(target, exported.Data, 0o644); err != nil {
				return fmt.Errorf("cli.ledger.export.write: %w", err)
			}
			writeLine(app.streams.out, "Wrote %d bytes to %s.", len(exported.Data), target)
			return nil
		}),
	}
	registerPeriodFlags(command.Flags(), &query)
	command.Flags().StringVar(&format, "format", string(taxapi.ExportExcel), "excel or csv")
	command.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to the server-provided name)")
	return command
}

func newLedgerDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show month, year-to-date, category and trend summaries",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			dashboard, err := app.services.Ledger.Dashboard(command.Context())
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, dashboard)
		}),
	}
}

func newLedgerCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List account categories",
		RunE: runWithApp(func(command *cobra.Command, arguments []string, app *application) error {
			categories, err := app.services.Ledger.Categories(command.Context())
			if err != nil {
				return err
			}
			return printJSON(app.streams.out, categories)
		}),
	}
}
