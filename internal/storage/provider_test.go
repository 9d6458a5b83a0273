package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
	csvstore "github.com/JakeFAU/storefront-crawler/internal/storage/csv"
	"github.com/JakeFAU/storefront-crawler/internal/storage/memory"
	"github.com/JakeFAU/storefront-crawler/internal/storage/sqlite"
)

func TestOpenSelectsBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  Config
		want any
	}{
		{name: "default is sqlite", cfg: Config{Path: filepath.Join(dir, "a.db")}, want: &sqlite.Store{}},
		{name: "sqlite", cfg: Config{Backend: "SQLite", Path: filepath.Join(dir, "b.db")}, want: &sqlite.Store{}},
		{name: "csv", cfg: Config{Backend: "csv", Path: filepath.Join(dir, "p.csv")}, want: &csvstore.Store{}},
		{name: "memory", cfg: Config{Backend: "memory"}, want: &memory.Store{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(context.Background(), tc.cfg, nil)
			require.NoError(t, err)
			defer func() { _ = store.Close() }()
			assert.IsType(t, tc.want, store)
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Backend: "mongo"}, nil)
	require.ErrorContains(t, err, "unknown storage backend")
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Backend: BackendPostgres}, nil)
	require.Error(t, err)
}

func TestHistoryReader(t *testing.T) {
	t.Parallel()

	_, err := HistoryReader(memory.NewStore(crawler.MetadataKeepFirst))
	require.NoError(t, err)

	csv, err := csvstore.Open(filepath.Join(t.TempDir(), "p.csv"))
	require.NoError(t, err)
	defer func() { _ = csv.Close() }()
	_, err = HistoryReader(csv)
	require.Error(t, err)
}

type wrappedStore struct{ crawler.Store }

func (w wrappedStore) Unwrap() crawler.Store { return w.Store }

func TestHistoryReaderUnwrapsDecorators(t *testing.T) {
	t.Parallel()

	inner := memory.NewStore(crawler.MetadataKeepFirst)
	reader, err := HistoryReader(wrappedStore{Store: inner})
	require.NoError(t, err)
	assert.Same(t, inner, reader)

	csv, err := csvstore.Open(filepath.Join(t.TempDir(), "p.csv"))
	require.NoError(t, err)
	defer func() { _ = csv.Close() }()
	_, err = HistoryReader(wrappedStore{Store: csv})
	require.ErrorContains(t, err, "does not support price history")
}
