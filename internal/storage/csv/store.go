// Package csvstore appends product observations to a flat CSV file.
package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

// Header is the column order written to new files.
var Header = []string{"date", "url", "name", "price", "description", "images"}

const dateLayout = "2006-01-02 15:04:05"

// Store writes one row per observation. Every row carries the full product,
// so the metadata policy does not apply and there is no history lookup.
type Store struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// Open opens path for appending, writing the header when the file is new or empty.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat csv %s: %w", path, err)
	}
	s := &Store{file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.writeRow(Header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

// RecordObservation appends one row and flushes it.
func (s *Store) RecordObservation(ctx context.Context, obs crawler.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if obs.Product.URL == "" {
		return fmt.Errorf("product url is required")
	}
	if obs.Price < 0 {
		return fmt.Errorf("negative price %d", obs.Price)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRow([]string{
		obs.ObservedAt.UTC().Format(dateLayout),
		obs.Product.URL,
		obs.Product.Name,
		strconv.FormatInt(obs.Price, 10),
		obs.Product.Description,
		crawler.JoinImages(obs.Product.Images),
	})
}

func (s *Store) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Close flushes pending output and closes the file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	s.file = nil
	if flushErr != nil {
		return fmt.Errorf("flush csv: %w", flushErr)
	}
	return closeErr
}
