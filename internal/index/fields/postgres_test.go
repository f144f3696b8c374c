package fields

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostgres runs against BIBSEARCH_TEST_POSTGRES_DSN when set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("BIBSEARCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BIBSEARCH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.DeleteAll(ctx))
	assert.Equal(t, "postgres", s.Driver())

	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "War and Peace", "year": "1869"}))
	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "War and Peace"}))

	got, err := s.Fields(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "War and Peace"}, got)

	ids, err := s.Match(ctx, "title", Contains("WAR"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids)

	ids, err = s.Match(ctx, "", Regex("^war"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids)

	require.NoError(t, s.DeleteAll(ctx))
}
