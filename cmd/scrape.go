package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newScrapeCmd creates the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "scrape <url>",
		Short:       "Scrapes one product page, or every product card on one listing page",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{needsApp: ""},
		RunE: withApp(func(cmd *cobra.Command, args []string, appInstance App) error {
			summary, err := appInstance.Scrape(cmd.Context(), args[0])
			printSummary(cmd.OutOrStdout(), summary)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			return nil
		}),
	}
}
