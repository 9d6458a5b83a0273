// Package cmd defines and implements the CLI commands for the storefront-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-crawler/internal/app"
	"github.com/JakeFAU/storefront-crawler/internal/config"
	"github.com/JakeFAU/storefront-crawler/internal/crawler"
	"github.com/JakeFAU/storefront-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// needsApp marks commands whose RunE resolves the App from the context.
const needsApp = "needs-app"

// App defines the application interface that commands use.
// This allows a mock app to be injected during tests.
type App interface {
	Crawl(ctx context.Context) (crawler.Summary, error)
	Scrape(ctx context.Context, rawURL string) (crawler.Summary, error)
	History(ctx context.Context, rawURL string) (crawler.Product, []crawler.PriceObservation, error)
	Logger() *zap.Logger
	Close() error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger, app.Deps{})
}

// newLogger is swapped in tests to keep output quiet.
var newLogger = func(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Development, cfg.Logging.Level)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "storefront-crawler",
		Short: "Crawls a storefront and records product price observations.",
		Long: `storefront-crawler walks every same-site page reachable from a start URL,
recognizes product detail pages, and appends one price observation per product
visit to the configured store (SQLite, Postgres, CSV or memory).`,
		SilenceUsage: true,

		// Runs before the subcommand's RunE: load config, then build and inject the app.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[needsApp]; !ok {
				return nil
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if flag := cmd.Flags().Lookup("start-url"); flag != nil && flag.Changed {
				if err := cfg.SetStartURL(flag.Value.String()); err != nil {
					return err
				}
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger.Named(cmd.Name()))
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// Execute is the main entry point.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp resolves the injected App for run and closes it afterwards, whether
// or not run succeeded.
func withApp(run func(cmd *cobra.Command, args []string, a App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := appInstance.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close app: %w", cerr))
			}
		}()
		return run(cmd, args, appInstance)
	}
}

func printSummary(w io.Writer, summary crawler.Summary) {
	fmt.Fprintf(w, "fetched=%d fetch_failed=%d products=%d extraction_failed=%d price_defaulted=%d store_failed=%d\n",
		summary.Fetched,
		summary.FetchFailed,
		summary.Products,
		summary.ExtractionFailed,
		summary.PriceDefaulted,
		summary.StoreFailed,
	)
}
