// Package publisher announces stored price observations on a message topic so
// downstream consumers can react to price changes without polling the store.
package publisher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
	"github.com/JakeFAU/storefront-crawler/internal/metrics"
)

// Publisher sends one payload to a named topic and returns the broker's message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
	Close() error
}

// Event is the JSON body published for each stored observation.
type Event struct {
	RunID       string    `json:"run_id"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	Price       int64     `json:"price"`
	PriceParsed bool      `json:"price_parsed"`
	ObservedAt  time.Time `json:"observed_at"`
}

// NewEvent builds the event for obs.
func NewEvent(runID string, obs crawler.Observation) Event {
	images := obs.Product.Images
	if images == nil {
		images = []string{}
	}
	return Event{
		RunID:       runID,
		URL:         obs.Product.URL,
		Name:        obs.Product.Name,
		Description: obs.Product.Description,
		Images:      images,
		Price:       obs.Price,
		PriceParsed: obs.PriceParsed,
		ObservedAt:  obs.ObservedAt.UTC(),
	}
}

// Store wraps a crawler.Store and publishes an Event after every successful
// RecordObservation. Publish failures are logged and counted but never fail
// the write: the store stays the source of truth.
type Store struct {
	next   crawler.Store
	pub    Publisher
	topic  string
	runID  string
	logger *zap.Logger
}

// NewStore decorates next with publishing to topic.
func NewStore(next crawler.Store, pub Publisher, topic, runID string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Store{next: next, pub: pub, topic: topic, runID: runID, logger: logger}
}

// RecordObservation stores obs, then publishes it.
func (s *Store) RecordObservation(ctx context.Context, obs crawler.Observation) error {
	if err := s.next.RecordObservation(ctx, obs); err != nil {
		return err
	}
	id, err := s.pub.Publish(ctx, s.topic, NewEvent(s.runID, obs))
	if err != nil {
		metrics.ObservePublish(metrics.PublishFailed)
		s.logger.Warn("publish observation failed",
			zap.String("url", obs.Product.URL),
			zap.String("topic", s.topic),
			zap.Error(err),
		)
		return nil
	}
	metrics.ObservePublish(metrics.PublishOK)
	s.logger.Debug("observation published",
		zap.String("url", obs.Product.URL),
		zap.String("message_id", id),
	)
	return nil
}

// Unwrap returns the decorated store.
func (s *Store) Unwrap() crawler.Store {
	return s.next
}

// Close closes the store and then the publisher.
func (s *Store) Close() error {
	return errors.Join(s.next.Close(), s.pub.Close())
}
