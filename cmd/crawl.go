package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the whole storefront from the start URL",
		Long: `Walks every same-site link reachable from crawler.start_url (or --start-url),
storing one price observation per product page visited. Stops when no
unvisited links remain, on SIGINT/SIGTERM, or when a store write fails and
crawler.abort_on_store_error is set.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{needsApp: ""},
		RunE:        withApp(runCrawlCommand),
	}
	cmd.Flags().String("start-url", "", "absolute URL to start crawling from (overrides crawler.start_url)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string, appInstance App) error {
	summary, err := appInstance.Crawl(cmd.Context())
	printSummary(cmd.OutOrStdout(), summary)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	appInstance.Logger().Info("crawl command finished", zap.Int("products", summary.Products))
	return nil
}
