package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atendelab/chatwoot-harvest/internal/chatwoot"
	"github.com/atendelab/chatwoot-harvest/internal/config"
	"github.com/atendelab/chatwoot-harvest/internal/export"
	"github.com/atendelab/chatwoot-harvest/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export conversation history to a JSON file",
	Long: `Export discovers conversations in the configured Chatwoot account,
fetches every message, and writes one flat record per message.

Without date flags the full history is exported. With --start-date and
--end-date only messages inside the inclusive window are kept.

Examples:
  # Export everything
  cwharvest export

  # Export January 2025
  cwharvest export --start-date 2025-01-01 --end-date 2025-01-31

  # Export two specific inboxes with four parallel fetchers
  cwharvest export --inbox 101 --inbox 102 --workers 4

  # Export and archive into a local database
  cwharvest export --db ~/.cwharvest/archive.db`,
	RunE: runExport,
}

var (
	exportStartDate string
	exportEndDate   string
	exportInboxes   []int
	exportOut       string
	exportWorkers   int
	exportRateDelay int
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportStartDate, "start-date", "", "Window start (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportEndDate, "end-date", "", "Window end (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().IntSliceVar(&exportInboxes, "inbox", nil, "Restrict discovery to these inbox IDs (repeatable)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path (default: generated name in current directory)")
	exportCmd.Flags().IntVar(&exportWorkers, "workers", 0, "Parallel message fetchers (default from config)")
	exportCmd.Flags().IntVar(&exportRateDelay, "rate-delay-ms", 0, "Delay after each successful request (default from config)")
}

// exportSummary is the JSON printed to stdout after a successful run.
type exportSummary struct {
	OutputFile    string `json:"output_file"`
	Window        string `json:"window"`
	Conversations int    `json:"conversations"`
	Skipped       int    `json:"skipped_conversations"`
	Records       int    `json:"records"`
	ElapsedMS     int64  `json:"elapsed_ms"`
	ArchiveRunID  int64  `json:"archive_run_id,omitempty"`
}

func runExport(cmd *cobra.Command, args []string) error {
	settings, err := config.Resolve()
	if err != nil {
		return err
	}
	if exportRateDelay > 0 {
		settings.RateDelay = time.Duration(exportRateDelay) * time.Millisecond
	}
	if exportWorkers > 0 {
		settings.Workers = exportWorkers
	}

	if (exportStartDate == "") != (exportEndDate == "") {
		return fmt.Errorf("--start-date and --end-date must be provided together")
	}
	var window *export.Window
	if exportStartDate != "" {
		window, err = export.NewWindow(exportStartDate, exportEndDate)
		if err != nil {
			return err
		}
	}

	client, err := chatwoot.New(chatwoot.Config{
		BaseURL:   settings.BaseURL,
		Token:     settings.Token,
		AccountID: settings.AccountID,
		RateDelay: settings.RateDelay,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	result, err := export.Run(ctx, client, export.Options{
		Window:   window,
		InboxIDs: exportInboxes,
		Workers:  settings.Workers,
		Reporter: &export.ConsoleReporter{W: cmd.OutOrStderr()},
	})
	if err != nil {
		return err
	}

	outPath := exportOut
	if outPath == "" {
		outPath = export.Filename(window, started)
	}
	if err := export.WriteRecords(outPath, result.Records); err != nil {
		return err
	}

	summary := exportSummary{
		OutputFile:    outPath,
		Window:        window.Label(),
		Conversations: result.Conversations,
		Skipped:       result.Skipped,
		Records:       len(result.Records),
		ElapsedMS:     result.Elapsed.Milliseconds(),
	}

	if dbPath != "" {
		archive, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open archive database: %w", err)
		}
		defer archive.Close()

		runID, err := archive.ArchiveRun(window.Label(), started, result)
		if err != nil {
			return fmt.Errorf("failed to archive run: %w", err)
		}
		summary.ArchiveRunID = runID
	}

	return OutputJSON(summary)
}
