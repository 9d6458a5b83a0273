package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

// newHistoryCmd creates the 'history' subcommand.
func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "history <url>",
		Short:       "Prints the stored price history of a product",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{needsApp: ""},
		RunE:        withApp(runHistoryCommand),
	}
}

func runHistoryCommand(cmd *cobra.Command, args []string, appInstance App) error {
	product, prices, err := appInstance.History(cmd.Context(), args[0])
	if errors.Is(err, crawler.ErrNotFound) {
		return fmt.Errorf("no product stored for %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n%s\n\n", product.Name, product.URL)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPRICE")
	for _, p := range prices {
		fmt.Fprintf(tw, "%s\t%d\n", p.ObservedAt.Format("2006-01-02 15:04:05"), p.Price)
	}
	return tw.Flush()
}
