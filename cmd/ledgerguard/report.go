package main

import (
	"context"
	"fmt"

	"github.com/ledgerguard/ledgerguard/internal/cli"
	"github.com/ledgerguard/ledgerguard/internal/export"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/report"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the review report workbook",
		Long: `Render the current snapshot into a multi-tab spreadsheet: per-account
detail, per-department severity metrics, the balance-sheet equation
check, the correction log, and upload history.`,
		RunE: runReport,
	}

	cmd.Flags().StringP("output", "o", "", "Output path (default: review-report.xlsx)")
	cmd.Flags().Bool("summary", false, "Print the rollups to the terminal instead of writing a file")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	output, _ := cmd.Flags().GetString("output")
	summaryOnly, _ := cmd.Flags().GetBool("summary")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	accounts, err := store.Load(ctx)
	if err != nil {
		return err
	}

	if summaryOnly {
		printRollups(accounts)
		return nil
	}

	if output == "" {
		output = viper.GetString("report.output")
	}
	if output == "" {
		output = "review-report.xlsx"
	}
	output = expandPath(output)

	if err := writeReport(ctx, store, output, accounts); err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Report written to %s.", output)))
	return nil
}

func writeReport(ctx context.Context, store service.AccountStore, output string, accounts []*model.Account) error {
	corrections, err := store.GetCorrections(ctx)
	if err != nil {
		return err
	}
	uploads, err := store.GetUploadHistory(ctx)
	if err != nil {
		return err
	}

	exporter := export.NewExporter(service.RealClock{})
	return exporter.WriteFile(ctx, output, export.Snapshot{
		Accounts:    accounts,
		Corrections: corrections,
		Uploads:     uploads,
	})
}

func printRollups(accounts []*model.Account) {
	fmt.Println(cli.FormatTitle("Threshold Metrics"))
	for _, m := range report.ThresholdMetrics(accounts) {
		fmt.Printf("%-10s %-25s accounts=%d critical=%d medium=%d low=%d avg confidence=%.2f\n",
			m.DepartmentID, m.DepartmentName, m.Accounts,
			m.Counts[model.ThresholdCritical], m.Counts[model.ThresholdMedium], m.Counts[model.ThresholdLow],
			m.AvgConfidence)
	}

	summary := report.BalanceSheetSummary(accounts)
	content := fmt.Sprintf("Assets:      %.2f\nLiabilities: %.2f\nEquity:      %.2f\nDelta:       %.2f\n\n%s",
		summary.Assets, summary.Liabilities, summary.Equity, summary.Delta, summary.Suggestion)
	title := cli.SuccessStyle.Render(summary.Status)
	if summary.Status != report.SummaryBalanced {
		title = cli.ErrorStyle.Render(summary.Status)
	}
	fmt.Println(cli.RenderBox("Balance Sheet: "+title, content))
}
