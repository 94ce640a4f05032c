package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/classify"
	"github.com/ledgerguard/ledgerguard/internal/cli"
	"github.com/ledgerguard/ledgerguard/internal/ingest"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest general-ledger balance extracts",
		Long: `Read one or more spreadsheet extracts (xlsx or csv), reconcile them
against the current snapshot, and commit the merged result as one atomic
batch. Every imported account is classified, normalized, and scored
before it enters the review pipeline.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().Bool("clear", false, "Replace the existing snapshot instead of merging into it")
	cmd.Flags().Bool("dry-run", false, "Build and report the batch without committing it")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	clearExisting, _ := cmd.Flags().GetBool("clear")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	existing, err := store.Load(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reading extracts...[reset]"),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	sources := make([]ingest.Source, 0, len(args))
	for _, path := range args {
		data, readErr := os.ReadFile(expandPath(path))
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", path, readErr)
		}
		src, parseErr := ingest.ParseWorkbook(path, data)
		if parseErr != nil {
			// A bad file surfaces in the batch summary; siblings still load.
			src = ingest.Source{Name: path}
			slog.Warn("Failed to parse workbook", "file", path, "error", parseErr)
		}
		sources = append(sources, src)
		_ = bar.Add(1)
	}

	classifier, err := classify.NewClassifier()
	if err != nil {
		return err
	}
	pipeline := ingest.NewPipelineWithConfig(classifier, service.RealClock{}, ingest.Config{
		VarianceThreshold: varianceThreshold(),
	})

	started := time.Now()
	batch, err := pipeline.Run(ctx, sources, existing, clearExisting)
	if err != nil {
		return err
	}

	printBatchSummary(batch, time.Since(started))

	if dryRun {
		fmt.Println(cli.FormatInfo("Dry run: batch not committed."))
		return nil
	}

	if err := store.CommitBatch(ctx, batch); err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Committed batch %s with %d accounts.", batch.ID, len(batch.Accounts))))
	return nil
}

func printBatchSummary(batch *model.UploadBatch, elapsed time.Duration) {
	stats := service.CompletionStats{Duration: elapsed}
	content := ""
	for _, file := range batch.Files {
		line := fmt.Sprintf("%s: %d scanned, %d imported", file.FileName, file.RowsScanned, file.RowsImported)
		if len(file.Errors) > 0 {
			stats.FilesRejected++
			line += " " + cli.ErrorStyle.Render(fmt.Sprintf("(%d errors)", len(file.Errors)))
		} else {
			stats.FilesAccepted++
		}
		stats.RowsScanned += file.RowsScanned
		stats.RowsImported += file.RowsImported
		content += line + "\n"
	}
	stats.RowsSkipped = stats.RowsScanned - stats.RowsImported
	content += fmt.Sprintf("\nFiles: %d accepted, %d rejected\nRows: %d scanned, %d imported, %d skipped\nWarnings: %d\nElapsed: %s",
		stats.FilesAccepted, stats.FilesRejected,
		stats.RowsScanned, stats.RowsImported, stats.RowsSkipped,
		len(batch.Warnings), stats.Duration.Round(time.Millisecond))

	fmt.Println(cli.RenderBox("Ingestion Summary", content))

	if viper.GetBool("ingest.show_warnings") {
		for _, w := range batch.Warnings {
			fmt.Println(cli.FormatWarning(w))
		}
	}
	for _, e := range batch.Errors {
		fmt.Println(cli.FormatError(e))
	}
}
