// Package app initializes and holds long-lived services for one command
// invocation, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-crawler/internal/api"
	"github.com/JakeFAU/storefront-crawler/internal/clock/system"
	"github.com/JakeFAU/storefront-crawler/internal/config"
	"github.com/JakeFAU/storefront-crawler/internal/crawler"
	"github.com/JakeFAU/storefront-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/storefront-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/storefront-crawler/internal/id/uuid"
	"github.com/JakeFAU/storefront-crawler/internal/logging"
	"github.com/JakeFAU/storefront-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/storefront-crawler/internal/publisher"
	pubmemory "github.com/JakeFAU/storefront-crawler/internal/publisher/memory"
	pspublisher "github.com/JakeFAU/storefront-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/storefront-crawler/internal/storage"
)

// Deps lets callers (mainly tests) replace the network and storage edges.
// Nil fields are built from config.
type Deps struct {
	Store     crawler.Store
	Fetcher   crawler.Fetcher
	Clock     crawler.Clock
	IDGen     crawler.IDGenerator
	Publisher publisher.Publisher
}

// App holds the shared services a command needs.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runID   string
	store   crawler.Store
	fetcher crawler.Fetcher
	parser  crawler.Parser
	limiter crawler.Limiter
	clock   crawler.Clock
}

// New builds an App from cfg. The returned App owns the store and must be closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = uuid.New()
	}
	runID, err := idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger = logging.ForRun(logger, runID)

	store := deps.Store
	if store == nil {
		policy, err := cfg.MetadataPolicy()
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(ctx, storage.Config{
			Backend:  cfg.Storage.Backend,
			DSN:      cfg.Storage.DSN,
			Path:     cfg.Storage.Path,
			Policy:   policy,
			MaxConns: cfg.Storage.MaxConns,
		}, logger.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
	}

	if cfg.PublishEnabled() || deps.Publisher != nil {
		pub := deps.Publisher
		if pub == nil {
			pub, err = newPublisher(ctx, cfg.Publish)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("publisher init failed: %w", err)
			}
		}
		logger.Info("publishing observations", zap.String("topic", cfg.Publish.Topic))
		store = publisher.NewStore(store, pub, cfg.Publish.Topic, runID, logger.Named("publish"))
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.RequestTimeout(),
		})
	}
	clock := deps.Clock
	if clock == nil {
		clock = system.New()
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		runID:   runID,
		store:   store,
		fetcher: fetcher,
		parser:  extract.NewParser(cfg.Selectors()),
		limiter: ratelimit.New(ratelimit.Config{MinInterval: cfg.InterFetchDelay()}),
		clock:   clock,
	}, nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// RunID identifies this invocation in logs and on /status.
func (a *App) RunID() string {
	return a.runID
}

// Crawl walks the configured site. When server.addr is set, the status server
// runs for the duration of the crawl.
func (a *App) Crawl(ctx context.Context) (crawler.Summary, error) {
	if err := a.cfg.RequireStartURL(); err != nil {
		return crawler.Summary{}, err
	}
	engine := a.newEngine(a.cfg.Crawler.BaseDomain, a.logger.Named("crawl"))

	if a.cfg.Server.Addr == "" {
		return engine.Run(ctx)
	}

	history, _ := storage.HistoryReader(a.store)
	srv := api.NewServer(engine, history, a.runID, a.clock, a.logger.Named("api"))
	srvCtx, stopServer := context.WithCancel(ctx)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(srvCtx, a.cfg.Server.Addr) }()

	summary, err := engine.Run(ctx)
	stopServer()
	if serr := <-srvErr; serr != nil {
		a.logger.Warn("status server error", zap.Error(serr))
	}
	return summary, err
}

// Scrape processes a single product or listing page without following site links.
func (a *App) Scrape(ctx context.Context, rawURL string) (crawler.Summary, error) {
	domain := a.cfg.Crawler.BaseDomain
	if domain == "" {
		d, err := crawler.BaseDomain(rawURL)
		if err != nil {
			return crawler.Summary{}, fmt.Errorf("scrape url: %w", err)
		}
		domain = d
	}
	return a.newEngine(domain, a.logger.Named("scrape")).ScrapeURL(ctx, rawURL)
}

// History returns the stored product at rawURL and its price observations.
func (a *App) History(ctx context.Context, rawURL string) (crawler.Product, []crawler.PriceObservation, error) {
	reader, err := storage.HistoryReader(a.store)
	if err != nil {
		return crawler.Product{}, nil, err
	}
	productURL, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		return crawler.Product{}, nil, err
	}
	return reader.PriceHistory(ctx, productURL)
}

func newPublisher(ctx context.Context, cfg config.PublishConfig) (publisher.Publisher, error) {
	switch cfg.Backend {
	case "memory":
		return pubmemory.New(), nil
	case "pubsub":
		return pspublisher.Dial(ctx, cfg.ProjectID)
	default:
		return nil, fmt.Errorf("unknown publish backend %q", cfg.Backend)
	}
}

func (a *App) newEngine(baseDomain string, logger *zap.Logger) *crawler.Engine {
	return crawler.NewEngine(
		a.cfg.EngineConfig(),
		crawler.NewURLFilter(baseDomain, a.cfg.Crawler.BlockedExtensions),
		a.fetcher,
		a.parser,
		a.store,
		a.limiter,
		a.clock,
		logger,
	)
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
