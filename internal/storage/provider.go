// Package storage selects and opens the configured product store backend.
// Backends live in subpackages; all of them implement crawler.Store and all
// except csv also implement crawler.HistoryReader.
package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
	csvstore "github.com/JakeFAU/storefront-crawler/internal/storage/csv"
	"github.com/JakeFAU/storefront-crawler/internal/storage/memory"
	"github.com/JakeFAU/storefront-crawler/internal/storage/postgres"
	"github.com/JakeFAU/storefront-crawler/internal/storage/sqlite"
)

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendCSV      = "csv"
	BackendMemory   = "memory"
)

// Config selects a backend and carries its connection settings.
type Config struct {
	Backend  string
	DSN      string
	Path     string
	Policy   crawler.MetadataPolicy
	MaxConns int32
}

// Open constructs the store named by cfg.Backend.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (crawler.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.Path, cfg.Policy)
		if err != nil {
			return nil, err
		}
		logger.Info("store opened", zap.String("backend", BackendSQLite), zap.String("path", cfg.Path))
		return store, nil
	case BackendPostgres:
		store, err := postgres.NewStore(ctx, postgres.StoreConfig{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			Policy:   cfg.Policy,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("store opened", zap.String("backend", BackendPostgres))
		return store, nil
	case BackendCSV:
		store, err := csvstore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Policy == crawler.MetadataOverwrite {
			logger.Warn("csv backend appends full rows; on_conflict policy ignored")
		}
		logger.Info("store opened", zap.String("backend", BackendCSV), zap.String("path", cfg.Path))
		return store, nil
	case BackendMemory:
		logger.Info("store opened", zap.String("backend", BackendMemory))
		return memory.NewStore(cfg.Policy), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// HistoryReader returns store as a crawler.HistoryReader when the backend
// supports lookups. Decorators exposing Unwrap are looked through.
func HistoryReader(store crawler.Store) (crawler.HistoryReader, error) {
	for {
		if reader, ok := store.(crawler.HistoryReader); ok {
			return reader, nil
		}
		wrapper, ok := store.(interface{ Unwrap() crawler.Store })
		if !ok {
			return nil, fmt.Errorf("storage backend %T does not support price history", store)
		}
		store = wrapper.Unwrap()
	}
}
