package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

func sampleObservation() crawler.Observation {
	return crawler.Observation{
		Product: crawler.Product{
			URL:         "https://shop.example/p/1",
			Name:        "Widget",
			Description: "A fine widget",
			Images:      []string{"https://shop.example/a.jpg", "https://shop.example/b.jpg"},
		},
		Price:       1500,
		PriceParsed: true,
		ObservedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordObservationInsertsProductAndPrice(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, crawler.MetadataKeepFirst)
	require.NoError(t, err)

	obs := sampleObservation()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url")).
		WithArgs(obs.Product.URL, obs.Product.Name, obs.Product.Description,
			"https://shop.example/a.jpg|https://shop.example/b.jpg").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO price_log").
		WithArgs(int64(7), int64(1500), obs.ObservedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.RecordObservation(context.Background(), obs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordObservationOverwritePolicyUpdatesMetadata(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, crawler.MetadataOverwrite)
	require.NoError(t, err)

	obs := sampleObservation()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("name = EXCLUDED.name")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO price_log").
		WithArgs(int64(3), int64(1500), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.RecordObservation(context.Background(), obs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordObservationRollsBackOnPriceFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO products").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("INSERT INTO price_log").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("check constraint violated"))
	mock.ExpectRollback()

	err = store.RecordObservation(context.Background(), sampleObservation())
	require.ErrorContains(t, err, "insert price")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordObservationRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)

	err = store.RecordObservation(context.Background(), crawler.Observation{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceHistoryReturnsRowsInOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)
	mock.ExpectQuery("SELECT id, name, description, images FROM products").
		WithArgs("https://shop.example/p/1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "images"}).
			AddRow(int64(7), "Widget", "A fine widget", "https://shop.example/a.jpg"))
	mock.ExpectQuery("SELECT price, createdin FROM price_log").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"price", "createdin"}).
			AddRow(int64(1500), t0).
			AddRow(int64(1400), t1))

	product, history, err := store.PriceHistory(context.Background(), "https://shop.example/p/1")
	require.NoError(t, err)
	require.Equal(t, "Widget", product.Name)
	require.Equal(t, []string{"https://shop.example/a.jpg"}, product.Images)
	require.Equal(t, []crawler.PriceObservation{
		{Price: 1500, ObservedAt: t0},
		{Price: 1400, ObservedAt: t1},
	}, history)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceHistoryNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, name, description, images FROM products").
		WithArgs("https://shop.example/missing").
		WillReturnError(pgx.ErrNoRows)

	_, _, err = store.PriceHistory(context.Background(), "https://shop.example/missing")
	require.ErrorIs(t, err, crawler.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewStore(context.Background(), StoreConfig{})
	require.Error(t, err)
}

func TestNewStoreWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewStoreWithPool(nil, "")
	require.Error(t, err)
}
