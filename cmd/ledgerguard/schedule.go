package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/cli"
	"github.com/ledgerguard/ledgerguard/internal/report"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the recurring report generator",
		Long: `Generate the review report workbook on a cron schedule. Each run writes
a timestamped workbook into the output directory. Runs never overlap;
a tick that fires mid-run waits for the previous run to finish.`,
		RunE: runSchedule,
	}

	cmd.Flags().String("cron", "0 18 * * *", "Cron schedule for report generation")
	cmd.Flags().String("output-dir", "", "Directory for generated workbooks (default: ./reports)")
	cmd.Flags().Bool("immediately", false, "Generate one report before waiting for the first tick")

	return cmd
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	spec, _ := cmd.Flags().GetString("cron")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	immediately, _ := cmd.Flags().GetBool("immediately")

	if outputDir == "" {
		outputDir = viper.GetString("report.output_dir")
	}
	if outputDir == "" {
		outputDir = "reports"
	}
	outputDir = expandPath(outputDir)

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	clock := service.RealClock{}
	runner := func(runCtx context.Context) error {
		accounts, loadErr := store.Load(runCtx)
		if loadErr != nil {
			return loadErr
		}
		name := fmt.Sprintf("review-report-%s.xlsx", clock.Now().Format("20060102-150405"))
		return writeReport(runCtx, store, filepath.Join(outputDir, name), accounts)
	}

	scheduler, err := report.NewScheduler(spec, clock, runner)
	if err != nil {
		return err
	}

	if immediately {
		if err := scheduler.RunNow(ctx); err != nil {
			return err
		}
	}

	fmt.Println(cli.FormatInfo(fmt.Sprintf("Next report at %s. Press Ctrl-C to stop.",
		scheduler.NextRun().Format(time.RFC1123))))

	if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
