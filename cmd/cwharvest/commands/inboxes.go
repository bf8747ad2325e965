package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atendelab/chatwoot-harvest/internal/chatwoot"
	"github.com/atendelab/chatwoot-harvest/internal/config"
)

var inboxesCmd = &cobra.Command{
	Use:   "inboxes",
	Short: "List the account's channel inboxes",
	Long: `Inboxes lists the channel inboxes of the configured Chatwoot account,
one id/name pair per inbox. Useful for choosing --inbox values for export.`,
	RunE: runInboxes,
}

func init() {
	rootCmd.AddCommand(inboxesCmd)
}

type inboxListing struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func runInboxes(cmd *cobra.Command, args []string) error {
	settings, err := config.Resolve()
	if err != nil {
		return err
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

	dir, err := client.LoadInboxes(ctx)
	if err != nil {
		return err
	}

	listing := make([]inboxListing, 0, len(dir))
	for _, id := range dir.IDs() {
		listing = append(listing, inboxListing{ID: id, Name: dir.Name(id)})
	}

	return OutputJSON(listing)
}
