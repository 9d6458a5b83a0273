package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

var _ crawler.IDGenerator = (*Generator)(nil)

func TestGeneratorNewIDIsVersion7(t *testing.T) {
	t.Parallel()

	id, err := New().NewID()
	require.NoError(t, err)

	parsed, err := goUUID.Parse(id)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
}

func TestGeneratorNewIDSortsByCreation(t *testing.T) {
	t.Parallel()

	gen := New()
	prev, err := gen.NewID()
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		next, err := gen.NewID()
		require.NoError(t, err)
		require.Less(t, prev, next)
		prev = next
	}
}
