// Package sqlite stores products and price history in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

const timestampLayout = "2006-01-02 15:04:05"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	images TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS price_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id),
	price INTEGER NOT NULL CHECK (price >= 0),
	createdin TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS price_log_product_id_idx ON price_log (product_id);
`

const upsertKeepFirstSQL = `
INSERT INTO products (url, name, description, images)
VALUES (?, ?, ?, ?)
ON CONFLICT (url) DO UPDATE SET url = excluded.url
RETURNING id`

const upsertOverwriteSQL = `
INSERT INTO products (url, name, description, images)
VALUES (?, ?, ?, ?)
ON CONFLICT (url) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	images = excluded.images
RETURNING id`

// Store is a crawler.Store backed by a single SQLite database file.
type Store struct {
	db     *sql.DB
	policy crawler.MetadataPolicy
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string, policy crawler.MetadataPolicy) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between workers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if policy == "" {
		policy = crawler.MetadataKeepFirst
	}
	return &Store{db: db, policy: policy}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordObservation upserts the product and appends one price_log row atomically.
func (s *Store) RecordObservation(ctx context.Context, obs crawler.Observation) (err error) {
	if obs.Product.URL == "" {
		return fmt.Errorf("product url is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := upsertKeepFirstSQL
	if s.policy == crawler.MetadataOverwrite {
		query = upsertOverwriteSQL
	}
	var productID int64
	err = tx.QueryRowContext(ctx, query,
		obs.Product.URL,
		obs.Product.Name,
		obs.Product.Description,
		crawler.JoinImages(obs.Product.Images),
	).Scan(&productID)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO price_log (product_id, price, createdin) VALUES (?, ?, ?)`,
		productID, obs.Price, obs.ObservedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit observation: %w", err)
	}
	return nil
}

// PriceHistory returns the stored product and its price rows, oldest first.
func (s *Store) PriceHistory(ctx context.Context, url string) (crawler.Product, []crawler.PriceObservation, error) {
	var (
		id      int64
		images  string
		product = crawler.Product{URL: url}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, images FROM products WHERE url = ?`, url,
	).Scan(&id, &product.Name, &product.Description, &images)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Product{}, nil, crawler.ErrNotFound
	}
	if err != nil {
		return crawler.Product{}, nil, fmt.Errorf("select product: %w", err)
	}
	product.Images = crawler.SplitImages(images)

	rows, err := s.db.QueryContext(ctx,
		`SELECT price, createdin FROM price_log WHERE product_id = ? ORDER BY id`, id)
	if err != nil {
		return crawler.Product{}, nil, fmt.Errorf("select prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crawler.PriceObservation
	for rows.Next() {
		var (
			obs     crawler.PriceObservation
			created string
		)
		if err := rows.Scan(&obs.Price, &created); err != nil {
			return crawler.Product{}, nil, fmt.Errorf("scan price: %w", err)
		}
		obs.ObservedAt, err = parseTimestamp(created)
		if err != nil {
			return crawler.Product{}, nil, err
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return crawler.Product{}, nil, fmt.Errorf("iterate prices: %w", err)
	}
	return product, out, nil
}

// parseTimestamp accepts the layout this package writes as well as the RFC 3339
// form the driver produces when it reads a TIMESTAMP column back as text.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano} {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse createdin %q", raw)
}
