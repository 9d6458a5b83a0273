package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

func openTestStore(t *testing.T, policy crawler.MetadataPolicy) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), policy)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func observation(name string, price int64, at time.Time) crawler.Observation {
	return crawler.Observation{
		Product: crawler.Product{
			URL:         "https://shop.example/p/1",
			Name:        name,
			Description: "desc " + name,
			Images:      []string{"https://shop.example/" + name + ".jpg"},
		},
		Price:       price,
		PriceParsed: true,
		ObservedAt:  at,
	}
}

func TestRecordObservationDeduplicatesProducts(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, crawler.MetadataKeepFirst)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	require.NoError(t, store.RecordObservation(ctx, observation("first", 1500, t0)))
	require.NoError(t, store.RecordObservation(ctx, observation("second", 1400, t1)))

	var products, prices int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&products))
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM price_log`).Scan(&prices))
	assert.Equal(t, 1, products)
	assert.Equal(t, 2, prices)

	product, history, err := store.PriceHistory(ctx, "https://shop.example/p/1")
	require.NoError(t, err)
	assert.Equal(t, "first", product.Name)
	assert.Equal(t, []string{"https://shop.example/first.jpg"}, product.Images)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1500), history[0].Price)
	assert.True(t, history[0].ObservedAt.Equal(t0))
	assert.Equal(t, int64(1400), history[1].Price)
	assert.True(t, history[1].ObservedAt.Equal(t1))
}

func TestRecordObservationOverwritePolicy(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, crawler.MetadataOverwrite)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordObservation(ctx, observation("first", 1500, now)))
	require.NoError(t, store.RecordObservation(ctx, observation("second", 1500, now)))

	product, history, err := store.PriceHistory(ctx, "https://shop.example/p/1")
	require.NoError(t, err)
	assert.Equal(t, "second", product.Name)
	assert.Equal(t, "desc second", product.Description)
	assert.Len(t, history, 2)
}

func TestRecordObservationRejectsNegativePrice(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, "")
	ctx := context.Background()

	err := store.RecordObservation(ctx, observation("neg", -1, time.Now()))
	require.Error(t, err)

	_, _, err = store.PriceHistory(ctx, "https://shop.example/p/1")
	require.ErrorIs(t, err, crawler.ErrNotFound, "failed observation must not leave a product behind")
}

func TestPriceHistoryNotFound(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, "")
	_, _, err := store.PriceHistory(context.Background(), "https://shop.example/none")
	require.ErrorIs(t, err, crawler.ErrNotFound)
}

func TestRecordObservationConcurrentWriters(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, "")
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(price int64) {
			defer wg.Done()
			errs <- store.RecordObservation(ctx, observation("w", price, now))
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, history, err := store.PriceHistory(ctx, "https://shop.example/p/1")
	require.NoError(t, err)
	assert.Len(t, history, 20)
}

func TestStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := Open(ctx, path, "")
	require.NoError(t, err)
	require.NoError(t, first.RecordObservation(ctx, observation("a", 100, now)))
	require.NoError(t, first.Close())

	second, err := Open(ctx, path, "")
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	require.NoError(t, second.RecordObservation(ctx, observation("b", 90, now)))

	product, history, err := second.PriceHistory(ctx, "https://shop.example/p/1")
	require.NoError(t, err)
	assert.Equal(t, "a", product.Name)
	assert.Len(t, history, 2)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", "")
	require.Error(t, err)
}
