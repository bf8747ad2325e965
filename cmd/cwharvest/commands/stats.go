package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atendelab/chatwoot-harvest/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize archived export runs",
	Long: `Stats reports totals across the runs archived in the local database:
run count, record count, distinct conversations, and the last run time.

Requires --db pointing at a database written by a previous export.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	if dbPath == "" {
		return fmt.Errorf("--db is required for stats")
	}

	archive, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open archive database: %w", err)
	}
	defer archive.Close()

	stats, err := archive.ReadStats()
	if err != nil {
		return err
	}

	return OutputJSON(stats)
}
