package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-crawler/internal/metrics"
)

const defaultRequestTimeout = 10 * time.Second

var errPageBudget = errors.New("max pages reached")

// Config holds the settings for a crawl run. It is decoupled from Viper so the
// engine can be configured directly in tests.
type Config struct {
	StartURL          string
	RequestTimeout    time.Duration
	Concurrency       int
	MaxPages          int
	AbortOnStoreError bool
}

// Engine drives fetch -> classify -> extract/persist -> discover -> enqueue.
type Engine struct {
	cfg      Config
	frontier *Frontier
	filter   *URLFilter
	fetcher  Fetcher
	parser   Parser
	store    Store
	limiter  Limiter
	clock    Clock
	logger   *zap.Logger

	mu        sync.Mutex
	summary   Summary
	started   int
	fatal     error
	storeErrs []error
}

// NewEngine wires an Engine. limiter may be nil for no inter-fetch delay.
func NewEngine(
	cfg Config,
	filter *URLFilter,
	fetcher Fetcher,
	parser Parser,
	store Store,
	limiter Limiter,
	clock Clock,
	logger *zap.Logger,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Engine{
		cfg:      cfg,
		frontier: NewFrontier(),
		filter:   filter,
		fetcher:  fetcher,
		parser:   parser,
		store:    store,
		limiter:  limiter,
		clock:    clock,
		logger:   logger,
	}
}

// Frontier exposes the crawl frontier for inspection.
func (e *Engine) Frontier() *Frontier {
	return e.frontier
}

// Summary returns a snapshot of the run counters.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Run crawls the site reachable from the start URL until the frontier is
// exhausted, ctx is cancelled, or a store failure aborts the run.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	start, err := NormalizeURL(e.cfg.StartURL)
	if err != nil {
		return Summary{}, fmt.Errorf("start url: %w", err)
	}
	e.frontier.Push(start)
	e.logger.Info("crawl started",
		zap.String("start_url", start),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.work(runCtx, cancel)
		}()
	}
	wg.Wait()

	summary := e.Summary()
	stats := e.frontier.Stats()
	e.logger.Info("crawl finished",
		zap.Int("visited", stats.Visited),
		zap.Int("pending", stats.Pending),
		zap.Int("products", summary.Products),
		zap.Int("fetch_failed", summary.FetchFailed),
		zap.Int("extraction_failed", summary.ExtractionFailed),
	)

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.fatal != nil:
		return summary, e.fatal
	case ctx.Err() != nil:
		return summary, fmt.Errorf("crawl interrupted: %w", ctx.Err())
	case len(e.storeErrs) > 0:
		return summary, fmt.Errorf("%d observations not stored: %w", len(e.storeErrs), errors.Join(e.storeErrs...))
	}
	return summary, nil
}

func (e *Engine) work(ctx context.Context, cancel context.CancelCauseFunc) {
	for {
		if ctx.Err() != nil {
			return
		}
		url, ok := e.frontier.Next(ctx)
		if !ok {
			return
		}
		if !e.claimPage() {
			cancel(errPageBudget)
			return
		}
		err := e.visit(ctx, url)
		e.frontier.Done(url)
		stats := e.frontier.Stats()
		metrics.SetFrontier(stats.Queued, stats.Visited)
		if err != nil {
			cancel(err)
			return
		}
	}
}

func (e *Engine) claimPage() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.MaxPages > 0 && e.started >= e.cfg.MaxPages {
		return false
	}
	e.started++
	return true
}

// visit processes one URL. Only a fatal store failure is returned.
func (e *Engine) visit(ctx context.Context, url string) error {
	doc, base, err := e.fetchDocument(ctx, url)
	if err != nil {
		return nil
	}

	if doc.IsProductPage() {
		if err := e.handleProduct(ctx, url, doc); err != nil {
			return err
		}
	}

	enqueued := 0
	for _, href := range doc.Links() {
		next, ok := e.filter.Normalize(href, base)
		if !ok {
			continue
		}
		if e.frontier.Push(next) {
			enqueued++
		}
	}
	e.logger.Debug("page processed",
		zap.String("url", url),
		zap.Int("enqueued", enqueued),
		zap.Int("queued", e.frontier.Stats().Queued),
	)
	return nil
}

// fetchDocument fetches and parses url. Failures are logged and counted; the
// returned base is the final URL after redirects, used to resolve links.
func (e *Engine) fetchDocument(ctx context.Context, url string) (Document, string, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, url); err != nil {
			return nil, "", err
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	resp, err := e.fetcher.Fetch(fetchCtx, FetchRequest{URL: url})
	if err != nil {
		e.count(func(s *Summary) { s.FetchFailed++ })
		metrics.ObservePage(url, metrics.StatusFetchError, 0)
		if ctx.Err() == nil {
			e.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		}
		return nil, "", err
	}
	e.count(func(s *Summary) { s.Fetched++ })
	metrics.ObservePage(url, metrics.StatusOK, len(resp.Body))

	base := resp.URL
	if base == "" {
		base = url
	}
	doc, err := e.parser.Parse(resp.Body, base)
	if err != nil {
		e.logger.Warn("parse failed", zap.String("url", url), zap.Error(err))
		return nil, "", err
	}
	return doc, base, nil
}

func (e *Engine) handleProduct(ctx context.Context, url string, doc Document) error {
	ext, err := doc.ExtractProduct()
	if err != nil {
		e.count(func(s *Summary) { s.ExtractionFailed++ })
		metrics.ObserveProduct(metrics.ProductExtractionFailed)
		e.logger.Warn("product extraction failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	ext.Product.URL = url
	if !ext.PriceParsed {
		e.count(func(s *Summary) { s.PriceDefaulted++ })
		metrics.ObserveProduct(metrics.ProductPriceDefaulted)
		e.logger.Info("price unparseable, recording 0", zap.String("url", url))
	}

	obs := Observation{
		Product:     ext.Product,
		Price:       ext.Price,
		PriceParsed: ext.PriceParsed,
		ObservedAt:  e.now(),
	}
	if err := e.store.RecordObservation(ctx, obs); err != nil {
		e.count(func(s *Summary) { s.StoreFailed++ })
		metrics.ObserveProduct(metrics.ProductStoreFailed)
		e.logger.Error("store observation failed", zap.String("url", url), zap.Error(err))
		wrapped := fmt.Errorf("record %s: %w", url, err)
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.cfg.AbortOnStoreError {
			if e.fatal == nil {
				e.fatal = wrapped
			}
			return wrapped
		}
		e.storeErrs = append(e.storeErrs, wrapped)
		return nil
	}
	e.count(func(s *Summary) { s.Products++ })
	metrics.ObserveProduct(metrics.ProductSaved)
	e.logger.Info("product saved",
		zap.String("url", url),
		zap.String("name", obs.Product.Name),
		zap.Int64("price", obs.Price),
	)
	return nil
}

// ScrapeURL handles a single page without following site links: a product page
// yields one observation, a listing page has each product card scraped in turn.
func (e *Engine) ScrapeURL(ctx context.Context, rawURL string) (Summary, error) {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return Summary{}, fmt.Errorf("scrape url: %w", err)
	}
	doc, base, err := e.fetchDocument(ctx, url)
	if err != nil {
		return e.Summary(), fmt.Errorf("scrape %s: %w", url, err)
	}
	if doc.IsProductPage() {
		err := e.handleProduct(ctx, url, doc)
		return e.Summary(), e.scrapeResult(err)
	}

	seen := make(map[string]struct{})
	for _, href := range doc.ProductCardLinks() {
		if ctx.Err() != nil {
			return e.Summary(), fmt.Errorf("scrape interrupted: %w", ctx.Err())
		}
		productURL, ok := e.filter.Normalize(href, base)
		if !ok {
			continue
		}
		if _, dup := seen[productURL]; dup {
			continue
		}
		seen[productURL] = struct{}{}
		productDoc, _, err := e.fetchDocument(ctx, productURL)
		if err != nil {
			continue
		}
		if !productDoc.IsProductPage() {
			e.logger.Debug("card link is not a product page", zap.String("url", productURL))
			continue
		}
		if err := e.handleProduct(ctx, productURL, productDoc); err != nil {
			return e.Summary(), err
		}
	}
	return e.Summary(), e.scrapeResult(nil)
}

func (e *Engine) scrapeResult(err error) error {
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.storeErrs) > 0 {
		return fmt.Errorf("%d observations not stored: %w", len(e.storeErrs), errors.Join(e.storeErrs...))
	}
	return nil
}

func (e *Engine) count(fn func(*Summary)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.summary)
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now().UTC().Truncate(time.Second)
	}
	return e.clock.Now().UTC().Truncate(time.Second)
}
