package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	dbPath       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cwharvest",
	Short: "Export customer messaging history from a Chatwoot account",
	Long: `cwharvest harvests conversation history from a Chatwoot account and
flattens it into one normalized record per message.

The tool has three commands:
  - export:  discover conversations, fetch their messages, and write records
  - inboxes: list the account's channel inboxes
  - stats:   summarize runs archived in the local database

Exports are written as JSON files; pass --db to also archive records in a
local SQLite database for later querying.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, jsonl)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Archive database path (default: no archive)")
}

// OutputJSON writes JSON to stdout with optional pretty printing
func OutputJSON(data interface{}) error {
	var output []byte
	var err error

	if outputFormat == "json" {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	fmt.Println(string(output))
	return nil
}

// OutputError writes error message to stderr
func OutputError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
