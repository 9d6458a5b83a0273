// Package postgres provides the Postgres-backed product store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	images TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS price_log (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES products(id),
	price INTEGER NOT NULL CHECK (price >= 0),
	createdin TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS price_log_product_id_idx ON price_log (product_id);
`

// The no-op DO UPDATE makes RETURNING yield the existing id on conflict.
const upsertKeepFirstSQL = `
INSERT INTO products (url, name, description, images)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
RETURNING id`

const upsertOverwriteSQL = `
INSERT INTO products (url, name, description, images)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	images = EXCLUDED.images
RETURNING id`

const insertPriceSQL = `
INSERT INTO price_log (product_id, price, createdin)
VALUES ($1, $2, $3)`

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	Policy          crawler.MetadataPolicy
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store writes products and price observations into Postgres.
type Store struct {
	pool   pool
	policy crawler.MetadataPolicy
}

// NewStore connects a pool using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, policy: policyOrDefault(cfg.Policy)}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(p pool, policy crawler.MetadataPolicy) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p, policy: policyOrDefault(policy)}, nil
}

// EnsureSchema creates the products and price_log tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// RecordObservation upserts the product and appends a price row in one transaction.
func (s *Store) RecordObservation(ctx context.Context, obs crawler.Observation) (err error) {
	if obs.Product.URL == "" {
		return fmt.Errorf("product url is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := upsertKeepFirstSQL
	if s.policy == crawler.MetadataOverwrite {
		query = upsertOverwriteSQL
	}
	var productID int64
	err = tx.QueryRow(ctx, query,
		obs.Product.URL,
		obs.Product.Name,
		obs.Product.Description,
		crawler.JoinImages(obs.Product.Images),
	).Scan(&productID)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	if _, err = tx.Exec(ctx, insertPriceSQL, productID, obs.Price, obs.ObservedAt.UTC()); err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit observation: %w", err)
	}
	return nil
}

// PriceHistory returns the product stored under url and its price rows, oldest first.
func (s *Store) PriceHistory(ctx context.Context, url string) (crawler.Product, []crawler.PriceObservation, error) {
	var (
		id      int64
		product = crawler.Product{URL: url}
		images  string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, images FROM products WHERE url = $1`, url,
	).Scan(&id, &product.Name, &product.Description, &images)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Product{}, nil, crawler.ErrNotFound
	}
	if err != nil {
		return crawler.Product{}, nil, fmt.Errorf("select product: %w", err)
	}
	product.Images = crawler.SplitImages(images)

	rows, err := s.pool.Query(ctx,
		`SELECT price, createdin FROM price_log WHERE product_id = $1 ORDER BY id`, id)
	if err != nil {
		return crawler.Product{}, nil, fmt.Errorf("select prices: %w", err)
	}
	defer rows.Close()

	var out []crawler.PriceObservation
	for rows.Next() {
		var obs crawler.PriceObservation
		if err := rows.Scan(&obs.Price, &obs.ObservedAt); err != nil {
			return crawler.Product{}, nil, fmt.Errorf("scan price: %w", err)
		}
		obs.ObservedAt = obs.ObservedAt.UTC()
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return crawler.Product{}, nil, fmt.Errorf("iterate prices: %w", err)
	}
	return product, out, nil
}

func policyOrDefault(p crawler.MetadataPolicy) crawler.MetadataPolicy {
	if p == "" {
		return crawler.MetadataKeepFirst
	}
	return p
}
