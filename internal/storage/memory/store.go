// Package memory provides an in-process product store for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

type record struct {
	id      int64
	product crawler.Product
	prices  []crawler.PriceObservation
}

// Store keeps products and their price history in memory. The product lookup
// and insert happen under one lock, so concurrent observations of the same URL
// never create two products.
type Store struct {
	mu      sync.RWMutex
	policy  crawler.MetadataPolicy
	nextID  int64
	records map[string]*record
}

// NewStore constructs a Store with the given metadata policy.
func NewStore(policy crawler.MetadataPolicy) *Store {
	if policy == "" {
		policy = crawler.MetadataKeepFirst
	}
	return &Store{
		policy:  policy,
		records: make(map[string]*record),
	}
}

// RecordObservation upserts the product by URL and appends one price row.
func (s *Store) RecordObservation(_ context.Context, obs crawler.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[obs.Product.URL]
	if !ok {
		s.nextID++
		rec = &record{id: s.nextID, product: cloneProduct(obs.Product)}
		s.records[obs.Product.URL] = rec
	} else if s.policy == crawler.MetadataOverwrite {
		rec.product = cloneProduct(obs.Product)
	}
	rec.prices = append(rec.prices, crawler.PriceObservation{
		Price:      obs.Price,
		ObservedAt: obs.ObservedAt.UTC(),
	})
	return nil
}

// PriceHistory returns the stored product and its observations in insertion order.
func (s *Store) PriceHistory(_ context.Context, url string) (crawler.Product, []crawler.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[url]
	if !ok {
		return crawler.Product{}, nil, crawler.ErrNotFound
	}
	return cloneProduct(rec.product), append([]crawler.PriceObservation(nil), rec.prices...), nil
}

// ProductCount returns the number of distinct products.
func (s *Store) ProductCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ObservationCount returns the total number of price rows.
func (s *Store) ObservationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, rec := range s.records {
		total += len(rec.prices)
	}
	return total
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func cloneProduct(p crawler.Product) crawler.Product {
	p.Images = append([]string{}, p.Images...)
	return p
}
