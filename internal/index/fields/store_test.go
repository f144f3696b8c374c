package fields

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
	assert.Equal(t, "sqlite", s.Driver())
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "War"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Fields(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "War"}, got)
}

func TestUpsertEntry_SupersedesAndRemovesStale(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "War", "year": "1869"}))
	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "Peace"}))

	got, err := s.Fields(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Peace"}, got)

	n, err := s.CountField(ctx, "e1", "title")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertEntry_EmptyFieldsClearsEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "War"}))
	require.NoError(t, s.UpsertEntry(ctx, "e1", nil))

	ids, err := s.EntryIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "War and Peace", "year": "1869"}))
	require.NoError(t, s.UpsertEntry(ctx, "e2", map[string]string{"title": "Love and Hate", "note": "100% sure_thing"}))
	require.NoError(t, s.UpsertEntry(ctx, "e3", map[string]string{"title": "Émile", "author": "war"}))

	testCases := []struct {
		name  string
		field string
		pred  Predicate
		want  []string
	}{
		{"contains fielded", "title", Contains("war"), []string{"e1"}},
		{"contains any field", "", Contains("war"), []string{"e1", "e3"}},
		{"contains case folded", "title", Contains("ÉMILE"), []string{"e3"}},
		{"contains like metachar", "note", Contains("100%"), []string{"e2"}},
		{"contains underscore literal", "note", Contains("e_t"), []string{"e2"}},
		{"underscore no wildcard", "note", Contains("sureXthing"), nil},
		{"pattern anchored", "title", Pattern("war*"), []string{"e1"}},
		{"pattern inner", "title", Pattern("*and*"), []string{"e1", "e2"}},
		{"pattern single char", "year", Pattern("186?"), []string{"e1"}},
		{"pattern no match", "title", Pattern("and*"), nil},
		{"regex", "year", Regex(`^18\d\d$`), []string{"e1"}},
		{"regex case insensitive", "title", Regex("^love"), []string{"e2"}},
		{"unknown field", "journal", Contains("war"), nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Match(ctx, tc.field, tc.pred)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatch_InvalidRegex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertEntry(ctx, "e1", map[string]string{"title": "x"}))

	_, err := s.Match(ctx, "title", Regex("("))
	assert.Error(t, err)
}

func TestDeleteEntries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.UpsertEntry(ctx, id, map[string]string{"title": id}))
	}
	require.NoError(t, s.DeleteEntries(ctx, []string{"e1", "e3", "missing"}))

	ids, err := s.EntryIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, ids)

	require.NoError(t, s.DeleteAll(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWildcardToLike(t *testing.T) {
	testCases := map[string]string{
		"war*":    "war%",
		"*a?b*":   "%a_b%",
		`a\*b`:    "a*b",
		"100%":    `100\%`,
		"a_b":     `a\_b`,
		`tail\`:   `tail\\`,
		`\\x`:     `\\x`,
		`ü?`:      "ü_",
	}
	for in, want := range testCases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, wildcardToLike(in))
		})
	}
}

func TestPostgresRebind(t *testing.T) {
	d := postgresDialect{}
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", d.rebind("a = ? AND b IN (?, ?)"))
	assert.Equal(t, "x", sqliteDialect{}.rebind("x"))
}
